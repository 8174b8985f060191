package arena

import "fmt"

// CompareInput is the immutable input of a single compare job: one document,
// one prompt, and the models to fan out to. An empty Models slice means
// "every model in the catalog"; the engine expands it at create time so the
// persisted payload always carries the concrete set.
type CompareInput struct {
	DocumentID string   `json:"document_id"`
	Prompt     string   `json:"prompt"`
	Models     []string `json:"models,omitempty"`
}

// Validate checks the input shape. known reports whether a model name is
// registered in the catalog. All violations wrap ErrValidation.
func (in CompareInput) Validate(known func(string) bool) error {
	if in.DocumentID == "" {
		return fmt.Errorf("%w: document_id is required", ErrValidation)
	}
	if in.Prompt == "" {
		return fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if len(in.Models) == 0 {
		return fmt.Errorf("%w: at least one model is required", ErrValidation)
	}
	for _, m := range in.Models {
		if !known(m) {
			return fmt.Errorf("%w: unknown model %q", ErrValidation, m)
		}
	}
	return nil
}

// BatchCompareInput is the immutable input of a batch job: ordered document
// and prompt lists whose cross-product defines the combinations, plus the
// model set shared by every combination.
type BatchCompareInput struct {
	DocumentIDs []string `json:"document_ids"`
	Prompts     []string `json:"prompts"`
	Models      []string `json:"models,omitempty"`
}

// Validate checks the input shape. All violations wrap ErrValidation.
func (in BatchCompareInput) Validate(known func(string) bool) error {
	if len(in.DocumentIDs) == 0 {
		return fmt.Errorf("%w: at least one document_id is required", ErrValidation)
	}
	if len(in.Prompts) == 0 {
		return fmt.Errorf("%w: at least one prompt is required", ErrValidation)
	}
	for _, d := range in.DocumentIDs {
		if d == "" {
			return fmt.Errorf("%w: empty document_id", ErrValidation)
		}
	}
	for _, p := range in.Prompts {
		if p == "" {
			return fmt.Errorf("%w: empty prompt", ErrValidation)
		}
	}
	if len(in.Models) == 0 {
		return fmt.Errorf("%w: at least one model is required", ErrValidation)
	}
	for _, m := range in.Models {
		if !known(m) {
			return fmt.Errorf("%w: unknown model %q", ErrValidation, m)
		}
	}
	return nil
}

// Combinations returns the total number of (document, prompt) pairs.
func (in BatchCompareInput) Combinations() int {
	return len(in.DocumentIDs) * len(in.Prompts)
}
