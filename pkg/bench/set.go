// SPDX-License-Identifier: Apache-2.0

package bench

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Set holds at most one value per Kind. The zero value is an empty set.
// Iteration always follows execution order (cpu, memory, disk).
type Set[T any] struct {
	values  [numKinds]T
	present [numKinds]bool
}

// Put stores v under k, replacing any previous value. Unknown kinds are ignored.
func (s *Set[T]) Put(k Kind, v T) {
	i := k.index()
	if i < 0 {
		return
	}
	s.values[i] = v
	s.present[i] = true
}

func (s Set[T]) Get(k Kind) (T, bool) {
	var zero T
	i := k.index()
	if i < 0 || !s.present[i] {
		return zero, false
	}
	return s.values[i], true
}

func (s Set[T]) Has(k Kind) bool {
	_, ok := s.Get(k)
	return ok
}

func (s *Set[T]) Delete(k Kind) {
	i := k.index()
	if i < 0 {
		return
	}
	var zero T
	s.values[i] = zero
	s.present[i] = false
}

// Kinds returns the kinds present in the set in execution order.
func (s Set[T]) Kinds() []Kind {
	kinds := make([]Kind, 0, numKinds)
	for i, k := range Kinds {
		if s.present[i] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func (s Set[T]) Len() int {
	n := 0
	for _, p := range s.present {
		if p {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the set as an object keyed by kind name, in execution order.
func (s Set[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for n, k := range s.Kinds() {
		if n > 0 {
			buf.WriteByte(',')
		}
		v, _ := s.Get(k)
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s entry: %w", k, err)
		}
		fmt.Fprintf(&buf, "%q:", k)
		buf.Write(enc)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Set[T]{}
	for name, msg := range raw {
		k, err := ParseKind(name)
		if err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal(msg, &v); err != nil {
			return fmt.Errorf("decoding %s entry: %w", k, err)
		}
		s.Put(k, v)
	}
	return nil
}
