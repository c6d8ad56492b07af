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

import "golang.org/x/exp/constraints"

// Product 返回整数切片所有元素的乘积，空切片返回 1。
func Product[T constraints.Integer](values []T) T {
	var ret T = 1
	for _, v := range values {
		ret *= v
	}
	return ret
}

// CheckedProduct 返回 uint64 乘积，溢出时 ok 为 false。
func CheckedProduct(values []uint64) (uint64, bool) {
	var ret uint64 = 1
	for _, v := range values {
		if v != 0 && ret > ^uint64(0)/v {
			return 0, false
		}
		ret *= v
	}
	return ret, true
}
