// Package ir describes the control-flow graphs handed over by the lifter.
//
// The structures are plain data: they carry yaml, json and msgpack tags so
// that the service layer can decode them from any of the supported input
// encodings without an intermediate representation.
package ir

import (
	"fmt"
	"sort"
)

// Program is a collection of functions recovered from one binary
type Program struct {
	Binary    string      `json:"binary,omitempty" yaml:"binary,omitempty" msgpack:"binary,omitempty"`
	Functions []*Function `json:"functions" yaml:"functions" msgpack:"functions"`
}

// Function is the CFG of a single function
type Function struct {
	Name   string   `json:"name" yaml:"name" msgpack:"name"`
	Entry  uint64   `json:"entry" yaml:"entry" msgpack:"entry"`
	Blocks []*Block `json:"blocks" yaml:"blocks" msgpack:"blocks"`

	index map[uint64]*Block
}

// Block is a basic block as produced by the lifter
type Block struct {
	Address    uint64      `json:"address" yaml:"address" msgpack:"address"`
	Name       string      `json:"name,omitempty" yaml:"name,omitempty" msgpack:"name,omitempty"`
	Weight     int         `json:"weight" yaml:"weight" msgpack:"weight"`
	Successors []Successor `json:"successors,omitempty" yaml:"successors,omitempty" msgpack:"successors,omitempty"`
}

// Successor is an outgoing edge of a block.
// For a two-way conditional branch the first successor is the taken edge.
// In a multi-way branch a successor without labels is the default edge.
// Direct marks the unconditional or fallthrough jump; a block has at most
// one of them.
type Successor struct {
	Target uint64   `json:"target" yaml:"target" msgpack:"target"`
	Direct bool     `json:"direct,omitempty" yaml:"direct,omitempty" msgpack:"direct,omitempty"`
	Labels []uint64 `json:"labels,omitempty" yaml:"labels,omitempty" msgpack:"labels,omitempty"`
}

// Label returns a printable name for the block
func (b *Block) Label() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("bb_0x%x", b.Address)
}

// ValidationError describes a CFG that violates the input contract
type ValidationError struct {
	Function string
	Block    uint64
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Block != 0 {
		return fmt.Sprintf("function %q, block 0x%x: %s", e.Function, e.Block, e.Reason)
	}
	return fmt.Sprintf("function %q: %s", e.Function, e.Reason)
}

// Validate checks the input contract and builds the address index
func (f *Function) Validate() error {
	if f.Name == "" {
		return &ValidationError{Function: f.Name, Reason: "missing function name"}
	}

	index := make(map[uint64]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		if b == nil {
			return &ValidationError{Function: f.Name, Reason: "nil block"}
		}
		if _, exists := index[b.Address]; exists {
			return &ValidationError{Function: f.Name, Block: b.Address, Reason: "duplicate block address"}
		}
		if b.Weight < 0 {
			return &ValidationError{Function: f.Name, Block: b.Address, Reason: "negative weight"}
		}
		index[b.Address] = b
	}

	if len(f.Blocks) == 0 {
		f.index = index
		return nil
	}

	if _, ok := index[f.Entry]; !ok {
		return &ValidationError{Function: f.Name, Block: f.Entry, Reason: "entry block is not declared"}
	}

	for _, b := range f.Blocks {
		for _, s := range b.Successors {
			if _, ok := index[s.Target]; !ok {
				return &ValidationError{
					Function: f.Name,
					Block:    b.Address,
					Reason:   fmt.Sprintf("successor 0x%x is not declared", s.Target),
				}
			}
		}
		if reason := checkSuccessors(b.Successors); reason != "" {
			return &ValidationError{Function: f.Name, Block: b.Address, Reason: reason}
		}
	}

	f.index = index
	return nil
}

// checkSuccessors verifies the branch shape of one block. Entries sharing a
// target count once, and a target reached by any unlabeled entry is a
// default target. Beyond two targets every one but the default needs labels.
func checkSuccessors(succs []Successor) string {
	targets := make(map[uint64]bool, len(succs))
	defaults := make(map[uint64]bool)
	direct := 0
	for _, s := range succs {
		targets[s.Target] = true
		if len(s.Labels) == 0 {
			defaults[s.Target] = true
		}
		if s.Direct {
			direct++
		}
	}
	if direct > 1 {
		return fmt.Sprintf("%d successors are marked direct", direct)
	}
	if len(targets) > 2 && len(defaults) > 1 {
		return fmt.Sprintf("%d successors with %d unlabeled targets, only the default may omit labels",
			len(targets), len(defaults))
	}
	return ""
}

// Block looks up a block by address. Validate must have been called.
func (f *Function) Block(address uint64) (*Block, bool) {
	b, ok := f.index[address]
	return b, ok
}

// EntryBlock returns the entry block, or nil for an empty function
func (f *Function) EntryBlock() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.index[f.Entry]
}

// Reachable returns the blocks reachable from the entry in address order
func (f *Function) Reachable() []*Block {
	entry := f.EntryBlock()
	if entry == nil {
		return nil
	}

	seen := map[uint64]bool{entry.Address: true}
	stack := []*Block{entry}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range b.Successors {
			if seen[s.Target] {
				continue
			}
			seen[s.Target] = true
			stack = append(stack, f.index[s.Target])
		}
	}

	result := make([]*Block, 0, len(seen))
	for _, b := range f.Blocks {
		if seen[b.Address] {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Address < result[j].Address })
	return result
}

// TotalWeight sums the weights of the given blocks
func TotalWeight(blocks []*Block) int {
	total := 0
	for _, b := range blocks {
		total += b.Weight
	}
	return total
}
