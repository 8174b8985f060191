// Package arena provides a background engine for head-to-head comparison of
// LLM responses. A caller uploads a document, submits a compare job naming a
// prompt and a set of models, and polls for the result: every selected model
// answers the prompt over the document concurrently, and a judge model scores
// the answers against each other.
//
// Arena is designed as a library, not a service. Import it, configure a
// store and the model collaborators, and submit jobs:
//
//	eng, err := engine.New(store, invoker, evaluator, catalog)
//	j, err := eng.CreateCompare(ctx, arena.CompareInput{
//	    DocumentID: docID,
//	    Prompt:     "Summarize the key decisions.",
//	    Models:     []string{"gpt-4o", "gpt-4o-mini"},
//	})
//	err = eng.Start(ctx, j.ID)
//
// Submission returns immediately; execution survives the submitting caller
// disconnecting and is observed through polling. Batch jobs run the full
// cross-product of documents and prompts, one combination at a time, with
// per-model fan-out inside each combination.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers ("job_…", "doc_…").
package arena
