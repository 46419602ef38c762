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

// Package search answers natural-language questions about emission factors
// with retrieval-augmented generation.
//
// The Engine retrieves the top_k most similar documents from the index,
// packs as many of them as fit a character budget into a context block
// (highest score first), and asks the generation model to answer from that
// context. A failed or timed-out generation still returns the retrieved
// documents, marked with core.GenerationUnavailableMarker.
//
// When retrieval finds nothing above the minimum score, an optional lexical
// fallback (keyword search over NAICS codes and titles) supplies documents
// instead.
package search
