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


package chat

const taxAssistantPrompt = `You are an expert United States tax assistant with deep knowledge of tax regulations, IRS publications, and tax law. Provide accurate, well-structured answers to tax questions.

When the provided document context is relevant, ground your answer in it and name the source document and page you are drawing from. When the context does not cover the question, answer from general tax knowledge and say so plainly. If asked about non-tax topics, politely redirect to tax-related questions.`

const noContextNote = `No relevant passages were found in the uploaded documents for this question. Answer from general United States tax knowledge and make clear the answer does not cite the user's documents.`

// systemPrompt combines the assistant instructions with the retrieved
// document context, or notes that no relevant documents were found.
func systemPrompt(context string) string {
	if context == "" {
		return taxAssistantPrompt + "\n\n" + noContextNote
	}
	return taxAssistantPrompt + "\n\nContext from the user's tax documents:\n\n" + context
}
