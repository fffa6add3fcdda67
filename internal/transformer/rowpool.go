// Package transformer provides the pooled row container shared by the parser
// and the record normalizer. Pooling keeps the parse stage allocation-light
// even for multi-hundred-thousand-line exports.
package transformer

import "sync"

// Row is a pooled container holding one positional source line.
//
// Ownership contract:
//   - Exactly one goroutine "owns" a Row at a time.
//   - A Row may be passed downstream via channels (ownership transfer).
//   - The final consumer must call Free() AFTER it is fully done with the Row
//     (and anything referencing r.V).
//
// On cancellation paths use Drop() instead of Free(): a canceled consumer can
// still be reading r.V while the parser reuses a re-pooled Row, which corrupts
// in-flight records.
type Row struct {
	V    []string
	Line int // 1-based logical record number, if known
}

var rowPool sync.Pool

// GetRow returns a pooled Row with length colCount. All elements are zeroed.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]string, colCount)
		}
		r.V = r.V[:colCount]
		for i := range r.V {
			r.V[i] = ""
		}
		r.Line = 0
		return r
	}
	return &Row{
		V:    make([]string, colCount),
		Line: 0,
	}
}

// Free returns the Row to the pool.
// Call this ONLY when no other goroutine can observe r or r.V.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop discards the Row WITHOUT returning it to the pool.
func (r *Row) Drop() {
	r.V = nil
	r.Line = 0
}
