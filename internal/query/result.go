package query

// Source identifies which answer path produced a result.
type Source string

const (
	SourceCache         Source = "cache"
	SourceRetrievalOnly Source = "retrieval_only"
	SourceGenerative    Source = "generative_llm"
)

// ErrorKind classifies failures so the transport layer can map them to
// status codes without parsing messages.
type ErrorKind int

const (
	// ErrNone means the result carries an answer.
	ErrNone ErrorKind = iota

	// ErrNotFound: the requested collection has no loadable index.
	ErrNotFound

	// ErrNotReady: required components are uninitialized.
	ErrNotReady

	// ErrProvider: the generative model provider failed.
	ErrProvider

	// ErrInternal: any other failure.
	ErrInternal
)

// Result is the orchestrator's output. Exactly one of Answer or ErrMessage
// is set; the orchestrator itself never returns an error value.
type Result struct {
	Answer                   string
	Source                   Source
	SourceDocumentsRetrieved int

	Kind       ErrorKind
	ErrMessage string
}

// IsError reports whether the result carries a failure.
func (r Result) IsError() bool { return r.Kind != ErrNone }

func answer(text string, source Source) Result {
	return Result{Answer: text, Source: source}
}

func failure(kind ErrorKind, message string) Result {
	return Result{Kind: kind, ErrMessage: message}
}
