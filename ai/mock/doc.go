// Package mock provides test doubles for the ai package interfaces.
//
//	client := mock.NewMockClient()
//	client.UploadFileFunc = func(ctx context.Context, path string) (string, error) {
//	    return "", errors.New("quota exceeded")
//	}
//
//	// later
//	assert.Len(t, client.Uploads(), 0)
//
// Default behavior:
//
//   - MockClient: every call succeeds, IDs are sequential ("file-1", "vs-1", ...)
//   - WordCounter: counts whitespace separated words as tokens
package mock
