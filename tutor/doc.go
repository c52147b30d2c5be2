// Package tutor implements the prompt-coaching loop on top of the llmrouter
// orchestration pipeline.
//
// A Machine drives a two-state cycle per conversation. While collecting, each
// user turn runs one low-temperature classification call to detect which of
// the six prompt elements (instruction, context, constraints, output format,
// examples, system persona) the accumulated draft contains, then asks exactly
// one clarifying question about the highest-priority missing element. Once
// all six are present the machine switches to suggesting, runs a second call
// that assesses the draft and rewrites it, returns both, and resets to
// collecting for the next draft.
//
// # Quick Start
//
//	machine := tutor.NewMachine(client)
//	result, err := machine.Turn(ctx, llmrouter.ChatRequest{
//	    ConversationID: "demo",
//	    Messages:       []llmrouter.Message{llmrouter.UserMessage("Write a poem")},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Question) // or result.Feedback once complete
//
// State is per conversation id and turns on one conversation are serialized;
// distinct conversations proceed in parallel.
package tutor
