// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "fmt"

// ValidateCollectionSpec validates a CollectionSpec.
//
// Validation rules:
//   - Name must not be empty
//   - VectorSize must be positive
//   - Distance and Comparator must be set
func ValidateCollectionSpec(spec CollectionSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCollectionSpec, ErrEmptyCollectionName)
	}
	if spec.VectorSize <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCollectionSpec, ErrInvalidVectorSize)
	}
	if spec.Distance == "" {
		return fmt.Errorf("%w: distance is required", ErrInvalidCollectionSpec)
	}
	if spec.Comparator == "" {
		return fmt.Errorf("%w: comparator is required", ErrInvalidCollectionSpec)
	}
	return nil
}

// ValidateMultiVector checks that mv holds at least one vector and that every
// vector has exactly dim components. row is reported in the error.
func ValidateMultiVector(row int, mv MultiVector, dim int) error {
	if len(mv) == 0 {
		return &DimensionError{Row: row, Token: -1, Expected: dim, Actual: 0}
	}
	for i, v := range mv {
		if len(v) != dim {
			return &DimensionError{Row: row, Token: i, Expected: dim, Actual: len(v)}
		}
	}
	return nil
}

// ValidateEmbeddings runs ValidateMultiVector over every embedding.
func ValidateEmbeddings(embeddings []MultiVector, dim int) error {
	for row, mv := range embeddings {
		if err := ValidateMultiVector(row, mv, dim); err != nil {
			return err
		}
	}
	return nil
}
