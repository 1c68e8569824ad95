// Package ai defines the client abstraction over the OpenAI files, vector
// store and assistant APIs used to publish ingested batch files.
//
// Two implementation packages exist:
//
//   - ai/openai: production client built on github.com/sashabaranov/go-openai,
//     plus a token counter backed by langchaingo
//   - ai/mock: scripted in-memory test doubles
//
// Public constructors (openai.NewClient) return the ai.Client interface.
// Test constructors (mock.NewMockClient) return concrete types so tests can
// inspect recorded calls.
//
//	cfg := ai.NewConfig(ai.WithAPIKey(key))
//	client, err := openai.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id, err := client.UploadFile(ctx, "out/batch_1.json")
package ai
