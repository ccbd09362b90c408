// Package model defines the uniform model client interface the pipeline
// speaks to language model providers through, plus the error taxonomy the
// router and base agent use to classify invocation failures.
//
// Concrete providers live in subpackages (model/openai, model/anthropic);
// MockModel supports deterministic tests without network access.
package model
