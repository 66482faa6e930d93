package chat

import (
	"fmt"
	"strings"

	"github.com/fuxihub/fuxiquant-go/internal/tool"
)

const (
	imStart         = "<|im_start|>"
	imEnd           = "<|im_end|>\n"
	thinkOpenTag    = "<think>"
	thinkCloseTag   = "</think>"
	batchSize       = 512
	defaultMaxRounds = 10
)

// Config configures a Session at construction.
type Config struct {
	SystemPrompt    string
	EnableThinking  bool
	Tools           []tool.Tool
	Dialect         tool.Dialect
	MaxToolRounds   int
}

// ToolExecutor resolves a parsed call to its result. Returning false
// means the call could not be executed and should be dropped.
type ToolExecutor func(call tool.ToolCall) (tool.ToolResult, bool)

// Session is one ChatML conversation against an injected Engine,
// carrying the n_past-equivalent cursor and first-turn flag across
// turns. Grounded on agent.rs's Agent (n_cur/is_first_turn fields,
// chat/chat_internal/chat_with_tools methods).
type Session struct {
	engine  Engine
	cfg     Config
	nPast   int
	isFirst bool
	seed    uint32
}

// New constructs a Session bound to engine.
func New(engine Engine, cfg Config) *Session {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxRounds
	}
	return &Session{engine: engine, cfg: cfg, isFirst: true}
}

// Reset clears the conversation cursor, starting a fresh first turn.
// The caller is responsible for recreating the underlying Engine's own
// context/KV state; Reset only resets this Session's bookkeeping.
func (s *Session) Reset() {
	s.nPast = 0
	s.isFirst = true
}

func (s *Session) buildSystemPrompt() string {
	if len(s.cfg.Tools) == 0 {
		return s.cfg.SystemPrompt
	}
	return s.cfg.Dialect.SystemPromptBlock(s.cfg.Tools) + s.systemPromptSuffix()
}

func (s *Session) systemPromptSuffix() string {
	if s.cfg.SystemPrompt == "" {
		return ""
	}
	return "\n" + s.cfg.SystemPrompt
}

func (s *Session) thinkPrefix() string {
	if s.cfg.EnableThinking {
		return thinkOpenTag
	}
	return thinkOpenTag + "\n\n" + thinkCloseTag + "\n\n"
}

func (s *Session) buildPrompt(message string) (prompt string, addBOS bool) {
	var p strings.Builder
	if s.isFirst {
		if sys := s.buildSystemPrompt(); sys != "" {
			p.WriteString(imStart + "system\n")
			p.WriteString(sys)
			p.WriteString(imEnd)
		}
	}
	p.WriteString(imStart + "user\n")
	p.WriteString(message)
	p.WriteString(imEnd)
	p.WriteString(imStart + "assistant\n")
	p.WriteString(s.thinkPrefix())
	return p.String(), s.isFirst
}

// Chat runs a single turn, emitting StreamEvents via onEvent and
// returning once generation is complete (Done is the final event).
func (s *Session) Chat(message string, onEvent func(StreamEvent)) error {
	return s.chatInternal(message, onEvent, true)
}

func (s *Session) chatInternal(message string, onEvent func(StreamEvent), emitDone bool) error {
	if s.cfg.EnableThinking {
		onEvent(thinkBegin())
	}

	prompt, addBOS := s.buildPrompt(message)
	s.isFirst = false

	tokens, err := s.engine.Tokenize(prompt, addBOS)
	if err != nil {
		return fmt.Errorf("chat: tokenize: %w", err)
	}

	if err := s.decodeBatched(tokens, s.nPast); err != nil {
		return err
	}
	s.nPast += len(tokens)

	thinkStart := s.nPast
	inThinking := s.cfg.EnableThinking
	var buffer strings.Builder
	sentLen := 0

	params := ThinkingSamplerParams(s.seed)
	if !s.cfg.EnableThinking {
		params = NonThinkingSamplerParams(s.seed)
	}
	s.seed++

	for {
		next, err := s.engine.Sample(params)
		if err != nil {
			return fmt.Errorf("chat: sample: %w", err)
		}
		if s.engine.IsEOS(next) {
			break
		}

		piece, err := s.engine.Detokenize(next)
		if err == nil {
			if inThinking {
				buffer.WriteString(piece)
				buffered := buffer.String()
				if pos := strings.Index(buffered, thinkCloseTag); pos >= 0 {
					if pos > sentLen {
						if part := buffered[sentLen:pos]; part != "" {
							onEvent(tokenEvent(part))
						}
					}
					inThinking = false
					sentLen = 0
					after := buffered[pos+len(thinkCloseTag):]
					buffer.Reset()
					onEvent(thinkEnd())
					if after != "" {
						onEvent(tokenEvent(after))
					}
				} else if len(buffered) > sentLen {
					if part := buffered[sentLen:]; part != "" {
						onEvent(tokenEvent(part))
					}
					sentLen = len(buffered)
				}
			} else {
				onEvent(tokenEvent(piece))
			}
		}

		if err := s.engine.Decode([]Token{next}, s.nPast); err != nil {
			return fmt.Errorf("chat: decode: %w", err)
		}
		s.nPast++
	}

	if thinkStart < s.nPast {
		thinkLen := s.nPast - thinkStart
		if err := s.engine.ClearKV(thinkStart, s.nPast); err != nil {
			return fmt.Errorf("chat: clear_kv: %w", err)
		}
		if err := s.engine.ShiftKV(s.nPast, -thinkLen); err != nil {
			return fmt.Errorf("chat: shift_kv: %w", err)
		}
		s.nPast = thinkStart
	}

	endTokens, err := s.engine.Tokenize(imEnd, false)
	if err != nil {
		return fmt.Errorf("chat: tokenize im_end: %w", err)
	}
	if err := s.decodeBatched(endTokens, s.nPast); err != nil {
		return err
	}
	s.nPast += len(endTokens)

	if emitDone {
		onEvent(doneEvent())
	}
	return nil
}

func (s *Session) decodeBatched(tokens []Token, startPos int) error {
	for start := 0; start < len(tokens); start += batchSize {
		end := start + batchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		if err := s.engine.Decode(tokens[start:end], startPos+start); err != nil {
			return fmt.Errorf("chat: decode: %w", err)
		}
	}
	return nil
}

// ChatWithTools runs the multi-turn tool-calling loop bounded by
// MaxToolRounds, suppressing tool-call syntax from the visible token
// stream and feeding executed results back as the next user turn.
// Grounded on agent.rs's Agent::chat_with_tools.
func (s *Session) ChatWithTools(message string, onEvent func(StreamEvent), exec ToolExecutor) (string, error) {
	currentMessage := message
	var fullResponse string

	for round := 0; ; round++ {
		if round >= s.cfg.MaxToolRounds {
			onEvent(errorEvent("exceeded maximum tool-call rounds"))
			break
		}

		var roundResponse strings.Builder
		var pending strings.Builder
		inToolCall := false

		err := s.chatInternal(currentMessage, func(ev StreamEvent) {
			if ev.Kind != EventToken {
				onEvent(ev)
				return
			}
			roundResponse.WriteString(ev.Data)

			if inToolCall {
				return
			}
			pending.WriteString(ev.Data)
			buffered := pending.String()

			if idx := s.cfg.Dialect.CallStartIndex(buffered); idx >= 0 {
				inToolCall = true
				before := strings.TrimSpace(buffered[:idx])
				if before != "" {
					onEvent(tokenEvent(before))
				}
				pending.Reset()
				return
			}

			// No marker yet: only hold back up to SentinelMaxLen bytes
			// of trailing text in case a marker is about to start.
			maxLen := s.cfg.Dialect.SentinelMaxLen()
			if len(buffered) > maxLen {
				safe := buffered[:len(buffered)-maxLen]
				onEvent(tokenEvent(safe))
				pending.Reset()
				pending.WriteString(buffered[len(buffered)-maxLen:])
			}
		}, false)
		if err != nil {
			return "", err
		}

		response := roundResponse.String()
		hadToolCall := s.cfg.Dialect.HasToolCall(response)

		if hadToolCall {
			calls := s.cfg.Dialect.ParseToolCalls(response)
			var results []tool.ToolResult
			for _, call := range calls {
				b, _ := marshalCall(call)
				onEvent(toolCallEvent(b))
				if result, ok := exec(call); ok {
					rb, _ := marshalResult(result)
					onEvent(toolResultEvent(rb))
					results = append(results, result)
				}
			}
			if len(results) > 0 {
				currentMessage = s.cfg.Dialect.FormatToolResponses(results)
				continue
			}
		}

		if hadToolCall {
			fullResponse = s.cfg.Dialect.ExtractFinalContent(response)
		} else {
			fullResponse = response
		}
		break
	}

	onEvent(doneEvent())
	return fullResponse, nil
}
