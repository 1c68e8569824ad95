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

// Package openai talks to the OpenAI Files, Vector Stores and Assistants
// endpoints through github.com/sashabaranov/go-openai. Any server speaking
// the same REST dialect works when ai.WithBaseURL points at it.
//
// A typical publish sequence:
//
//	client, err := openai.NewClient(ai.NewConfig(ai.WithAPIKey(key)))
//	if err != nil {
//	    return err
//	}
//	id, err := client.UploadFile(ctx, "out/slack/slack_messages_1.json")
//	store, err := client.CreateVectorStore(ctx, "lmao")
//	_, err = client.AddFileBatch(ctx, store, []string{id})
//
// NewTokenCounter resolves a langchaingo tokenizer for a model name. The
// batch writers use it to keep each output file under a token ceiling.
package openai
