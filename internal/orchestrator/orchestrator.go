// Package orchestrator runs the multi-step chat pipeline: profile update,
// query generation, retrieval, and answer synthesis.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tourchat/internal/indexer"
	"tourchat/internal/retriever"
	"tourchat/internal/state"
)

// supportedLanguages are the languages search queries are generated in.
// Queries in every language are fused with OR so retrieval works no matter
// which language the documents are written in.
var supportedLanguages = []string{"English", "Estonian", "Russian"}

// retrievalTop is how many sections a turn retrieves for grounding.
const retrievalTop = 3

// Pipeline step names reported through the progress callback.
const (
	StepProfile   = "profile"
	StepQuery     = "query"
	StepRetrieval = "retrieval"
	StepAnswer    = "answer"
)

// ChatRequest is one user turn.
type ChatRequest struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// DataPoint is one source passage the answer was grounded on.
type DataPoint struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ResponseContext carries the grounding sources and the model's reasoning.
type ResponseContext struct {
	DataPoints []DataPoint `json:"dataPoints"`
	Thoughts   string      `json:"thoughts"`
}

// ResponseMessage is the assistant's reply.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseChoice is the full result of one turn.
type ResponseChoice struct {
	Message ResponseMessage `json:"message"`
	Context ResponseContext `json:"context"`
}

// Orchestrator wires the completion provider, the embedder, and retrieval
// into the turn pipeline.
type Orchestrator struct {
	Chat          CompletionProvider
	Embedder      indexer.Embedder
	Retriever     *retriever.Retriever
	Profiles      *state.ProfileStore
	Conversations *state.Store
}

func New(chat CompletionProvider, embedder indexer.Embedder, r *retriever.Retriever, profiles *state.ProfileStore, conversations *state.Store) *Orchestrator {
	return &Orchestrator{
		Chat:          chat,
		Embedder:      embedder,
		Retriever:     r,
		Profiles:      profiles,
		Conversations: conversations,
	}
}

// ProcessTurn runs one full turn without progress reporting.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req ChatRequest) (*ResponseChoice, error) {
	return o.ProcessTurnWithProgress(ctx, req, nil)
}

// ProcessTurnWithProgress runs the four pipeline steps for one user turn.
// Profile and conversation state update only after the whole turn succeeds,
// so a failed or cancelled turn leaves no trace.
func (o *Orchestrator) ProcessTurnWithProgress(ctx context.Context, req ChatRequest, progress func(step string)) (*ResponseChoice, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("empty message")
	}
	if req.RequestID == "" {
		return nil, fmt.Errorf("missing request id")
	}
	report := func(step string) {
		if progress != nil {
			progress(step)
		}
	}

	conv := o.Conversations.GetOrCreate(req.RequestID)
	conv.BeginTurn()
	defer conv.EndTurn()

	user := o.Profiles.User()
	requestContent, _ := conv.Content()
	lastResponse, hasLast := conv.LastResponse()

	report(StepProfile)
	profile, request, err := o.updateProfileAndRequest(ctx, req.Message, user.Profile, requestContent, lastResponse, hasLast)
	if err != nil {
		return nil, err
	}

	report(StepQuery)
	query, language, err := o.generateQuery(ctx, req.Message, profile, request)
	if err != nil {
		return nil, err
	}

	report(StepRetrieval)
	vectors, err := o.Embedder.Embed(ctx, []string{req.Message})
	if err != nil {
		return nil, fmt.Errorf("query embedding error: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("query embedding error: got %d vectors for 1 input", len(vectors))
	}
	hits, err := o.Retriever.Search(ctx, query, vectors[0], retrievalTop)
	if err != nil {
		return nil, err
	}

	sources := "no source available."
	if len(hits) > 0 {
		var parts []string
		for _, h := range hits {
			if h.SourcePage == "" || h.Content == "" {
				continue
			}
			content := strings.ReplaceAll(h.Content, "\r", " ")
			content = strings.ReplaceAll(content, "\n", " ")
			parts = append(parts, fmt.Sprintf("%s:%s", h.SourcePage, content))
		}
		if len(parts) > 0 {
			sources = strings.Join(parts, "\r")
		}
	}

	report(StepAnswer)
	answer, thoughts, err := o.generateAnswer(ctx, req.Message, user.Name, profile, request, language, sources, lastResponse, hasLast)
	if err != nil {
		return nil, err
	}

	// The turn succeeded: commit the staged state.
	o.Profiles.SetProfile(profile)
	conv.Commit(request, answer)

	var dataPoints []DataPoint
	for _, h := range hits {
		dataPoints = append(dataPoints, DataPoint{Title: h.SourcePage, Content: h.Content})
	}

	return &ResponseChoice{
		Message: ResponseMessage{Role: "assistant", Content: answer},
		Context: ResponseContext{DataPoints: dataPoints, Thoughts: thoughts},
	}, nil
}

// updateProfileAndRequest distills what the new message adds to the user's
// rolling profile and to the conversation's condensed request.
func (o *Orchestrator) updateProfileAndRequest(ctx context.Context, question, profile, request, lastResponse string, hasLast bool) (string, string, error) {
	system := fmt.Sprintf(`You are an assistant for analyzing user message. Your job is to find update for user profiler and their request.

Always summarize the user profile and user request.

For user profile, use everything that user has said about themselves. For example, if user says "I like France", you should update user profile to include this information: "User likes France"

For user request, collect everything that user wants you to do and details they add about the request. For example, if user says "I want to book a vacation", you should update user request to include this information: "User wants to book a vacation"

Current user profile: "%s"
Current user request: "%s"

User provides new information in the message.

Always reply in English. If needed, translate reply into English.

Never answer to user question. Only update user profile and user request.

You answer needs to be a JSON object with the following format.
{
    "profile": // updated user profile. Explain everything you know about user. If no new information, put information you already know.
    "request": // updated user request. Explain everything user wants you to do. If no new information, put information you already know.
}

If the response is not in JSON, please retry and provide the correct JSON structure.`, profile, request)

	messages := []Message{{Role: "system", Content: system}}
	if hasLast {
		messages = append(messages, Message{Role: "assistant", Content: lastResponse})
	}
	messages = append(messages, Message{Role: "user", Content: question})

	raw, err := o.Chat.Complete(ctx, messages, nil)
	if err != nil {
		return "", "", err
	}
	log.Printf("User data: %s", raw)

	fields, err := decodeStringObject(StepProfile, raw, []string{"profile", "request"})
	if err != nil {
		return "", "", err
	}
	return fields["profile"], fields["request"], nil
}

// generateQuery asks the model for a search query in every supported
// language plus the user's language, and fuses the queries with OR.
func (o *Orchestrator) generateQuery(ctx context.Context, question, profile, request string) (string, string, error) {
	var queryLines []string
	for _, lang := range supportedLanguages {
		queryLines = append(queryLines, fmt.Sprintf(`"query.%s": // the search query translated to %s. `, lang, lang))
	}

	system := fmt.Sprintf(`You are a helpful AI assistant, generate search query for followup question and determine user language.

## User Profile ##
%s
%s
## End User Profile ##

Make use of User Profile for generating search query. Make your respond simple and precise. Query examples:

Northwind Health Plus AND standard plan.
standard plan AND dental AND employee benefit.

Remember this search query. Later you will need to translate it to other languages. You can translate everything, except AND.

You answer needs to be a JSON object with the following format.
{
    %s
    "language": // the language of the user message. e.g. English, Estonian, Russian etc.
}

Never answer to user question. Only generate search query and determine user language and reply in required JSON structure.

If the response is not in JSON, please retry and provide the correct JSON structure.`, profile, request, strings.Join(queryLines, "\n\t"))

	raw, err := o.Chat.Complete(ctx, []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: question},
	}, nil)
	if err != nil {
		return "", "", err
	}
	log.Printf("Query JSON: %s", raw)

	required := make([]string, 0, len(supportedLanguages)+1)
	for _, lang := range supportedLanguages {
		required = append(required, "query."+lang)
	}
	required = append(required, "language")

	fields, err := decodeStringObject(StepQuery, raw, required)
	if err != nil {
		return "", "", err
	}

	var parts []string
	for _, lang := range supportedLanguages {
		q := strings.TrimSuffix(fields["query."+lang], ".")
		parts = append(parts, "("+q+")")
	}
	return strings.Join(parts, " OR "), fields["language"], nil
}

// generateAnswer produces the grounded reply in the user's language. A
// reply that is not valid JSON degrades to the raw text with no thoughts
// rather than failing the turn.
func (o *Orchestrator) generateAnswer(ctx context.Context, question, userName, profile, request, language, sources, lastResponse string, hasLast bool) (string, string, error) {
	system := fmt.Sprintf(`You are an assistant representing DevClub Tours. You help our users and potential customers with their questions. Be brief in your answers.
## Source ##
%s
## End Source ##

## User Profile ##
User name is %s
User profile is %s
## End User Profile ##

## User Request ##
%s
## End User Request ##

Use User Profile to undertand user better and User Request to help user with their request. Use Source to provide information to user.

For reference, today is: %s. You can only offer details that are available in the sources provided above. If user is asking about destinations you don't know, tell them you don't know.
If you don't know what to answer, ask user to provide more information about their wishes, interests, preferred destinations.

Your reply should be only in %s language. Translate to %s if needed.

You answer needs to be a JSON object with the following format:
{
    "answer": // the answer to the question, add a source reference to the end of each sentence. e.g. Apple is a fruit [reference1.pdf][reference2.pdf]. If no source available, ask user to provide more information.
    "thoughts": // brief thoughts on how you came up with the answer, e.g. what sources you used, how did you use user profile and user request, what you thought about, etc.
}

If the response is not in JSON, please retry and provide the correct JSON structure.`,
		sources, userName, profile, request, time.Now().Format("2006-01-02"), language, language)

	messages := []Message{{Role: "system", Content: system}}
	if hasLast {
		messages = append(messages, Message{Role: "assistant", Content: lastResponse})
	}
	messages = append(messages, Message{Role: "user", Content: question})

	raw, err := o.Chat.Complete(ctx, messages, &Options{
		MaxTokens:     1024,
		Temperature:   0.7,
		StopSequences: []string{},
	})
	if err != nil {
		return "", "", err
	}
	log.Printf("Answer: %s", raw)

	fields, err := decodeStringObject(StepAnswer, raw, []string{"answer", "thoughts"})
	if err != nil {
		var cv *ContractViolationError
		if errors.As(err, &cv) && cv.Key == "" {
			// Not JSON at all: take the whole reply as the answer.
			log.Printf("Failed to parse answer JSON, took the whole answer instead")
			return raw, "", nil
		}
		return "", "", err
	}
	return fields["answer"], fields["thoughts"], nil
}
