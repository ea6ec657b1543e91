// Copyright 2026 Fiscus Labs
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


// Package retrieval provides semantic search over stored document chunks.
//
// The Retriever type embeds a query and ranks stored chunks by cosine
// similarity, filtered by a minimum relevance threshold. BuildContext
// formats ranked results into a source-attributed context string suitable
// for grounding a chat completion.
package retrieval
