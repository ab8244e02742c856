package prompt

import "fmt"

// Template selects one of three fixed instruction policies controlling how
// strictly the answer must stay inside the retrieved context. It is a static
// enumeration, not runtime-configurable text.
type Template string

const (
	TemplateStrict     Template = "strict"
	TemplateBalanced   Template = "balanced"
	TemplatePermissive Template = "permissive"

	DefaultTemplate = TemplateBalanced
)

// ParseTemplate validates a template name, mapping the empty string to the
// default.
func ParseTemplate(name string) (Template, error) {
	switch Template(name) {
	case "":
		return DefaultTemplate, nil
	case TemplateStrict, TemplateBalanced, TemplatePermissive:
		return Template(name), nil
	default:
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
}

const strictPreamble = `You are a customer service assistant for a retail store. Answer the user's question using ONLY the provided context from the store's policy documents. Do not use any external knowledge under any circumstances.`

const strictDirectives = `Instructions:
1. Answer based ONLY on the provided context; never add information that is not in the context
2. If the context does not contain enough information to answer, respond exactly that there is insufficient information in the store's policy documents and suggest contacting customer service
3. Every factual sentence in your answer must include a citation (e.g., [Source: document_name])
4. Be concise, accurate, and customer-friendly

Answer:`

const balancedPreamble = `You are a helpful customer service assistant for a retail store. Answer the user's question using the provided context from the store's policy documents as your primary source.`

const balancedDirectives = `Instructions:
1. Answer the question based on the provided context first
2. Limited, reasonable inference from the context is acceptable when it clearly follows
3. If the context doesn't contain enough information, say so clearly and suggest contacting customer service
4. Include citations where helpful (e.g., [Source: document_name])
5. Be concise, accurate, and customer-friendly
6. Focus on policies related to returns, exchanges, warranties, shipping, refunds, and store information

Answer:`

const permissivePreamble = `You are a helpful customer service assistant for a retail store. Answer the user's question, preferring the provided context from the store's policy documents but drawing on general knowledge when the context falls short.`

const permissiveDirectives = `Instructions:
1. Prefer the provided context when it answers the question
2. You may add general knowledge, but clearly mark it as general information not taken from the store's policy documents
3. Include citations for anything taken from the context (e.g., [Source: document_name])
4. Be concise, accurate, and customer-friendly

Answer:`

// noContextNote replaces the context block when retrieval returned nothing.
const noContextNote = `Note: If you don't have enough information to answer, suggest contacting customer service for assistance.`

func (t Template) preamble() string {
	switch t {
	case TemplateStrict:
		return strictPreamble
	case TemplatePermissive:
		return permissivePreamble
	default:
		return balancedPreamble
	}
}

func (t Template) directives() string {
	switch t {
	case TemplateStrict:
		return strictDirectives
	case TemplatePermissive:
		return permissiveDirectives
	default:
		return balancedDirectives
	}
}
