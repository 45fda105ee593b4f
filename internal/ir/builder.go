package ir

// FunctionBuilder assembles functions in code, mostly for tests and tools
// that synthesize CFGs
type FunctionBuilder struct {
	fn      *Function
	byName  map[string]*Block
	nextAdr uint64
}

// NewFunctionBuilder starts a new function with the given name
func NewFunctionBuilder(name string) *FunctionBuilder {
	return &FunctionBuilder{
		fn:      &Function{Name: name},
		byName:  make(map[string]*Block),
		nextAdr: 0x1000,
	}
}

// Block declares a block with unit weight. The first declared block is the entry.
func (b *FunctionBuilder) Block(names ...string) *FunctionBuilder {
	for _, name := range names {
		b.WeightedBlock(name, 1)
	}
	return b
}

// WeightedBlock declares a block with an explicit weight
func (b *FunctionBuilder) WeightedBlock(name string, weight int) *FunctionBuilder {
	if _, exists := b.byName[name]; exists {
		return b
	}
	block := &Block{Address: b.nextAdr, Name: name, Weight: weight}
	b.nextAdr += 0x10
	if len(b.fn.Blocks) == 0 {
		b.fn.Entry = block.Address
	}
	b.fn.Blocks = append(b.fn.Blocks, block)
	b.byName[name] = block
	return b
}

// Edge adds a successor edge, declaring missing blocks on the fly
func (b *FunctionBuilder) Edge(from, to string, labels ...uint64) *FunctionBuilder {
	b.Block(from, to)
	src := b.byName[from]
	src.Successors = append(src.Successors, Successor{
		Target: b.byName[to].Address,
		Labels: labels,
	})
	return b
}

// Chain adds edges between consecutive names
func (b *FunctionBuilder) Chain(names ...string) *FunctionBuilder {
	for i := 0; i+1 < len(names); i++ {
		b.Edge(names[i], names[i+1])
	}
	if len(names) == 1 {
		b.Block(names[0])
	}
	return b
}

// Entry moves the entry to the named block
func (b *FunctionBuilder) Entry(name string) *FunctionBuilder {
	b.Block(name)
	b.fn.Entry = b.byName[name].Address
	return b
}

// Lookup returns the block declared with the given name
func (b *FunctionBuilder) Lookup(name string) *Block {
	return b.byName[name]
}

// Build validates and returns the function
func (b *FunctionBuilder) Build() (*Function, error) {
	if err := b.fn.Validate(); err != nil {
		return nil, err
	}
	return b.fn, nil
}

// MustBuild is like Build but panics on invalid input
func (b *FunctionBuilder) MustBuild() *Function {
	fn, err := b.Build()
	if err != nil {
		panic(err)
	}
	return fn
}
