// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package typeutil

import (
	"sync"

	"golang.org/x/exp/maps"
)

type Set[T comparable] map[T]struct{}

func NewSet[T comparable](elements ...T) Set[T] {
	set := make(Set[T])
	set.Insert(elements...)
	return set
}

// Insert 将元素插入集合。
// 如果元素已存在，则忽略该元素。
func (set Set[T]) Insert(elements ...T) {
	for i := range elements {
		set[elements[i]] = struct{}{}
	}
}

// Union 返回与给定集合的并集。
func (set Set[T]) Union(other Set[T]) Set[T] {
	ret := set.Clone()
	for elem := range other {
		ret.Insert(elem)
	}
	return ret
}

// Complement 返回 set 中不属于 other 的元素。
func (set Set[T]) Complement(other Set[T]) Set[T] {
	ret := NewSet[T]()
	for elem := range set {
		if !other.Contain(elem) {
			ret.Insert(elem)
		}
	}
	return ret
}

// Contain 判断所有元素是否都在集合中。
func (set Set[T]) Contain(elements ...T) bool {
	for i := range elements {
		_, ok := set[elements[i]]
		if !ok {
			return false
		}
	}
	return true
}

func (set Set[T]) Remove(elements ...T) {
	for i := range elements {
		delete(set, elements[i])
	}
}

func (set Set[T]) Collect() []T {
	elements := make([]T, 0, len(set))
	for elem := range set {
		elements = append(elements, elem)
	}
	return elements
}

func (set Set[T]) Len() int {
	return len(set)
}

func (set Set[T]) Clone() Set[T] {
	return maps.Clone(set)
}

// ConcurrentSet 是并发安全的集合。
type ConcurrentSet[T comparable] struct {
	inner sync.Map
}

func NewConcurrentSet[T comparable]() *ConcurrentSet[T] {
	return &ConcurrentSet[T]{}
}

// Insert 插入元素，元素此前不存在时返回 true。
func (set *ConcurrentSet[T]) Insert(element T) bool {
	_, exist := set.inner.LoadOrStore(element, struct{}{})
	return !exist
}

func (set *ConcurrentSet[T]) Contain(elements ...T) bool {
	for _, elem := range elements {
		if _, ok := set.inner.Load(elem); !ok {
			return false
		}
	}
	return true
}

// TryRemove 删除元素，元素存在时返回 true。
func (set *ConcurrentSet[T]) TryRemove(element T) bool {
	_, exist := set.inner.LoadAndDelete(element)
	return exist
}

func (set *ConcurrentSet[T]) Collect() []T {
	ret := make([]T, 0)
	set.inner.Range(func(key, _ any) bool {
		ret = append(ret, key.(T))
		return true
	})
	return ret
}

func (set *ConcurrentSet[T]) Len() int {
	n := 0
	set.inner.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
