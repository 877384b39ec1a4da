// Package spirv reads descriptor bindings out of compiled SPIR-V modules so
// descriptor set layouts follow the shaders instead of being hardcoded.
package spirv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

const Magic uint32 = 0x07230203

var ErrInvalidModule = errors.New("invalid SPIR-V module")

// Stage values match VkShaderStageFlagBits.
type Stage uint32

const (
	StageVertex   Stage = 0x01
	StageGeometry Stage = 0x08
	StageFragment Stage = 0x10
	StageCompute  Stage = 0x20
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageGeometry:
		return "geometry"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("stages(0x%x)", uint32(s))
	}
}

// DescriptorType values match VkDescriptorType.
type DescriptorType uint32

const (
	DescriptorSampler              DescriptorType = 0
	DescriptorCombinedImageSampler DescriptorType = 1
	DescriptorSampledImage         DescriptorType = 2
	DescriptorStorageImage         DescriptorType = 3
	DescriptorUniformBuffer        DescriptorType = 6
	DescriptorStorageBuffer        DescriptorType = 7
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorSampler:
		return "sampler"
	case DescriptorCombinedImageSampler:
		return "combined_image_sampler"
	case DescriptorSampledImage:
		return "sampled_image"
	case DescriptorStorageImage:
		return "storage_image"
	case DescriptorUniformBuffer:
		return "uniform_buffer"
	case DescriptorStorageBuffer:
		return "storage_buffer"
	default:
		return "unknown"
	}
}

type Binding struct {
	Name    string
	Set     uint32
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  Stage
}

type Module struct {
	Stage      Stage
	EntryPoint string
	Bindings   []Binding
	// PushConstants is set when the module declares a push constant block.
	PushConstants bool
}

// opcodes
const (
	opName             = 5
	opEntryPoint       = 15
	opTypeImage        = 25
	opTypeSampler      = 26
	opTypeSampledImage = 27
	opTypeArray        = 28
	opTypeRuntimeArray = 29
	opTypeStruct       = 30
	opTypePointer      = 32
	opConstant         = 43
	opVariable         = 59
	opDecorate         = 71
)

// decorations
const (
	decorationBlock         = 2
	decorationBufferBlock   = 3
	decorationBinding       = 33
	decorationDescriptorSet = 34
)

// storage classes
const (
	storageUniformConstant = 0
	storageUniform         = 2
	storagePushConstant    = 9
	storageStorageBuffer   = 12
)

type typeInfo struct {
	op      uint32
	element uint32
	length  uint32
	// sampled is 2 for storage images.
	sampled uint32
	storage uint32
}

type decorations struct {
	set, binding       uint32
	hasSet, hasBinding bool
	block, bufferBlock bool
}

// Reflect parses a little-endian SPIR-V binary.
func Reflect(code []byte) (*Module, error) {
	if len(code) < 20 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole header plus words", ErrInvalidModule, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != Magic {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrInvalidModule, words[0])
	}
	return reflectWords(words)
}

func reflectWords(words []uint32) (*Module, error) {
	m := &Module{}
	names := map[uint32]string{}
	decos := map[uint32]*decorations{}
	types := map[uint32]*typeInfo{}
	constants := map[uint32]uint32{}
	type variable struct{ id, ptr, storage uint32 }
	var vars []variable

	deco := func(id uint32) *decorations {
		d, ok := decos[id]
		if !ok {
			d = &decorations{}
			decos[id] = d
		}
		return d
	}

	for pc := 5; pc < len(words); {
		count := int(words[pc] >> 16)
		op := words[pc] & 0xffff
		if count == 0 || pc+count > len(words) {
			return nil, fmt.Errorf("%w: instruction %d at word %d overruns the module", ErrInvalidModule, op, pc)
		}
		args := words[pc+1 : pc+count]

		switch op {
		case opName:
			if len(args) >= 2 {
				names[args[0]] = literalString(args[1:])
			}
		case opEntryPoint:
			if len(args) >= 3 && m.EntryPoint == "" {
				m.Stage = executionStage(args[0])
				m.EntryPoint = literalString(args[2:])
			}
		case opTypeImage:
			if len(args) >= 8 {
				types[args[0]] = &typeInfo{op: op, sampled: args[6]}
			}
		case opTypeSampler, opTypeSampledImage, opTypeStruct:
			if len(args) >= 1 {
				types[args[0]] = &typeInfo{op: op}
			}
		case opTypeArray:
			if len(args) >= 3 {
				types[args[0]] = &typeInfo{op: op, element: args[1], length: args[2]}
			}
		case opTypeRuntimeArray:
			if len(args) >= 2 {
				types[args[0]] = &typeInfo{op: op, element: args[1]}
			}
		case opTypePointer:
			if len(args) >= 3 {
				types[args[0]] = &typeInfo{op: op, storage: args[1], element: args[2]}
			}
		case opConstant:
			if len(args) >= 3 {
				constants[args[1]] = args[2]
			}
		case opVariable:
			if len(args) >= 3 {
				vars = append(vars, variable{id: args[1], ptr: args[0], storage: args[2]})
			}
		case opDecorate:
			if len(args) >= 2 {
				d := deco(args[0])
				switch args[1] {
				case decorationBlock:
					d.block = true
				case decorationBufferBlock:
					d.bufferBlock = true
				case decorationBinding:
					if len(args) >= 3 {
						d.binding, d.hasBinding = args[2], true
					}
				case decorationDescriptorSet:
					if len(args) >= 3 {
						d.set, d.hasSet = args[2], true
					}
				}
			}
		}
		pc += count
	}

	for _, v := range vars {
		switch v.storage {
		case storagePushConstant:
			m.PushConstants = true
			continue
		case storageUniformConstant, storageUniform, storageStorageBuffer:
		default:
			continue
		}
		d := decos[v.id]
		if d == nil || !d.hasBinding {
			continue
		}
		ptr := types[v.ptr]
		if ptr == nil || ptr.op != opTypePointer {
			return nil, fmt.Errorf("%w: variable %d is not declared through a pointer", ErrInvalidModule, v.id)
		}

		// Unwrap arrays down to the element type.
		count := uint32(1)
		typeID := ptr.element
		t := types[typeID]
		for t != nil && (t.op == opTypeArray || t.op == opTypeRuntimeArray) {
			if t.op == opTypeArray {
				count *= constants[t.length]
			} else {
				count = 0
			}
			typeID = t.element
			t = types[typeID]
		}
		if t == nil {
			return nil, fmt.Errorf("%w: unsupported type %d behind binding %d", ErrInvalidModule, typeID, d.binding)
		}

		var kind DescriptorType
		switch t.op {
		case opTypeSampledImage:
			kind = DescriptorCombinedImageSampler
		case opTypeSampler:
			kind = DescriptorSampler
		case opTypeImage:
			kind = DescriptorSampledImage
			if t.sampled == 2 {
				kind = DescriptorStorageImage
			}
		case opTypeStruct:
			sd := decos[typeID]
			switch {
			case v.storage == storageStorageBuffer, sd != nil && sd.bufferBlock:
				kind = DescriptorStorageBuffer
			default:
				kind = DescriptorUniformBuffer
			}
		default:
			return nil, fmt.Errorf("%w: unsupported type %d behind binding %d", ErrInvalidModule, typeID, d.binding)
		}

		name := names[v.id]
		if name == "" {
			name = names[typeID]
		}
		m.Bindings = append(m.Bindings, Binding{
			Name:    name,
			Set:     d.set,
			Binding: d.binding,
			Type:    kind,
			Count:   count,
			Stages:  m.Stage,
		})
	}

	sortBindings(m.Bindings)
	return m, nil
}

func executionStage(model uint32) Stage {
	switch model {
	case 0:
		return StageVertex
	case 3:
		return StageGeometry
	case 4:
		return StageFragment
	case 5:
		return StageCompute
	default:
		return 0
	}
}

func literalString(words []uint32) string {
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		for i := 0; i < 4; i++ {
			c := byte(w >> (8 * i))
			if c == 0 {
				return string(buf)
			}
			buf = append(buf, c)
		}
	}
	return string(buf)
}

func sortBindings(b []Binding) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].Set != b[j].Set {
			return b[i].Set < b[j].Set
		}
		return b[i].Binding < b[j].Binding
	})
}

// SetLayout is every binding of one descriptor set across all stages.
type SetLayout struct {
	Set      uint32
	Bindings []Binding
}

// Merge combines the bindings of several stages into per-set layouts. A
// binding shared by stages gets the union of their stage flags; sets with no
// bindings between the lowest and highest index come back empty so layouts
// can be indexed by set number.
func Merge(modules ...*Module) ([]SetLayout, error) {
	type key struct{ set, binding uint32 }
	merged := map[key]Binding{}
	var maxSet uint32
	found := false
	for _, m := range modules {
		for _, b := range m.Bindings {
			k := key{b.Set, b.Binding}
			if prev, ok := merged[k]; ok {
				if prev.Type != b.Type || prev.Count != b.Count {
					return nil, fmt.Errorf("set %d binding %d declared as %s[%d] and %s[%d]", b.Set, b.Binding, prev.Type, prev.Count, b.Type, b.Count)
				}
				prev.Stages |= b.Stages
				merged[k] = prev
				continue
			}
			merged[k] = b
			if b.Set > maxSet {
				maxSet = b.Set
			}
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	layouts := make([]SetLayout, maxSet+1)
	for i := range layouts {
		layouts[i].Set = uint32(i)
	}
	for _, b := range merged {
		layouts[b.Set].Bindings = append(layouts[b.Set].Bindings, b)
	}
	for i := range layouts {
		sortBindings(layouts[i].Bindings)
	}
	return layouts, nil
}
