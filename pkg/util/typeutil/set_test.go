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
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := NewSet(1, 2, 3)
	assert.True(t, s.Contain(1, 2))
	assert.False(t, s.Contain(1, 4))

	u := s.Union(NewSet(4))
	assert.Equal(t, 4, u.Len())
	assert.Equal(t, 3, s.Len())

	c := u.Complement(NewSet(1, 2))
	got := c.Collect()
	sort.Ints(got)
	assert.Equal(t, []int{3, 4}, got)

	s.Remove(1)
	assert.False(t, s.Contain(1))
}

func TestConcurrentSet(t *testing.T) {
	s := NewConcurrentSet[string]()
	assert.True(t, s.Insert("a"))
	assert.False(t, s.Insert("a"))
	assert.True(t, s.Insert("b"))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.TryRemove("a"))
	assert.False(t, s.TryRemove("a"))
	assert.Equal(t, []string{"b"}, s.Collect())
}

func TestProduct(t *testing.T) {
	assert.Equal(t, 1, Product([]int{}))
	assert.Equal(t, uint64(24), Product([]uint64{2, 3, 4}))

	v, ok := CheckedProduct([]uint64{2, 3})
	assert.True(t, ok)
	assert.Equal(t, uint64(6), v)
	_, ok = CheckedProduct([]uint64{1 << 40, 1 << 40})
	assert.False(t, ok)
	v, ok = CheckedProduct([]uint64{0, 1 << 63, 4})
	assert.True(t, ok)
	assert.Equal(t, uint64(0), v)
}
