// Package events defines the typed conversation event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_response.*
//   - assistant_speech.*
//   - turn_state.*
//
// user_input events
//
//   - UserTranscriptFinal (user_input.transcript_final): transcript produced
//     from a user recording, before it enters the turn path.
//
// assistant_response events
//
//   - AssistantResponseFinal (assistant_response.final): the complete reply
//     text for the turn.
//
// assistant_speech events
//
//   - AssistantSpeechChunk (assistant_speech.chunk): one synthesized sentence,
//     delivered in index order. A chunk whose synthesis failed carries no
//     audio and reports Skipped.
//
// turn_state events
//
//   - TurnBuffered (turn_state.buffered): fragment appended, utterance not yet
//     complete.
//   - TurnBusy (turn_state.busy): a turn is already in flight, the fragment was
//     dropped.
//   - TurnStarted (turn_state.started): utterance judged complete, processing
//     began.
//   - TurnCompleted (turn_state.completed): reply generated and synthesized,
//     history committed.
//   - TurnFailed (turn_state.failed): the turn did not complete; history and
//     buffered text are unchanged.
//
// Buffered, Busy, Completed and Failed are the four ConversationEvent
// outcomes of a fragment.
package events
