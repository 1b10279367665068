// Package pastq is a Go client for the pastq past-question retrieval API.
//
// Ask questions in plain language and get back matching past exam
// questions with their metadata:
//
//	client, _ := pastq.New("http://localhost:8080", pastq.WithAPIKey(key))
//	env, _ := client.Retrieve(ctx, "5 mark C questions from 2079 about pointers", 5)
//	for _, r := range env.Results {
//	    fmt.Println(r.Metadata["year_bs"], r.Text)
//	}
//
// Loading and removing questions needs an admin key:
//
//	report, _ := client.Load(ctx, "questions", records)
//	_ = client.Delete(ctx, "questions", []string{"q-17"})
//
// Failed calls return *APIError. Use errors.Is with the sentinel errors
// (ErrTimeout, ErrRateLimited, ...) to branch on the failure class.
package pastq
