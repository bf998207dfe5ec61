package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"persona-server/internal/ai"
	"persona-server/internal/messaging"
	"persona-server/internal/models"
	"persona-server/internal/prompt"
	"persona-server/internal/registry"
	"persona-server/internal/repository"
)

// TransportFailureText is stored as the reply when the backend call fails.
const TransportFailureText = "Error responding. Please try again."

const defaultUserName = "User"

// ChatDeps are the collaborators of the chat service. Publisher is optional.
type ChatDeps struct {
	Users      repository.UserRepository
	Characters repository.CharacterRepository
	Chat       repository.ChatRepository
	Sessions   repository.SessionStateRepository
	Settings   repository.SettingsRepository
	Resolver   ConnectionResolver
	Publisher  messaging.ModerationTaskPublisher
}

type chatServiceImpl struct {
	deps    ChatDeps
	timeout time.Duration
	locks   *keyedLock
	now     func() time.Time
	logger  *zap.Logger
}

var _ ChatService = (*chatServiceImpl)(nil)

// NewChatService creates the chat service. Every model call is bounded by timeout.
func NewChatService(deps ChatDeps, timeout time.Duration, logger *zap.Logger) ChatService {
	return &chatServiceImpl{
		deps:    deps,
		timeout: timeout,
		locks:   newKeyedLock(),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.Named("ChatService"),
	}
}

func chatLockKey(userID, characterID string) string {
	return userID + "\x00" + characterID
}

func (s *chatServiceImpl) SendTurn(ctx context.Context, req TurnRequest) (*TurnOutcome, error) {
	return s.StreamTurn(ctx, req, nil)
}

func (s *chatServiceImpl) StreamTurn(ctx context.Context, req TurnRequest, onUpdate func(text string)) (*TurnOutcome, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, models.ErrEmptyMessage
	}
	if req.UserID == "" || req.CharacterID == "" {
		return nil, models.ErrBadRequest
	}
	log := s.logger.With(zap.String("user_id", req.UserID), zap.String("character_id", req.CharacterID))

	// turns of one chat run one at a time so no stat update is lost
	unlock, err := s.locks.Lock(ctx, chatLockKey(req.UserID, req.CharacterID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	char, err := s.deps.Characters.GetCharacter(ctx, req.CharacterID)
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	settings, err := s.deps.Settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	session, err := s.loadSession(ctx, req.UserID, char)
	if err != nil {
		return nil, err
	}

	userMsg := s.newMessage(req.UserID, char.ID, models.SenderUser, text)
	if err := s.deps.Chat.Append(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}
	s.publishModeration(ctx, userMsg)

	history, err := s.deps.Chat.ListRecent(ctx, req.UserID, char.ID, settings.AI.MaxHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	model := req.Model
	if model == "" {
		model = settings.AI.DefaultModel
	}
	out := &TurnOutcome{
		UserMessage:    userMsg,
		StatChanges:    []models.StatChange{},
		Stats:          session.Stats,
		NarrativeState: session.NarrativeState,
		Model:          model,
	}

	resolved, err := s.deps.Resolver.ResolveForModel(ctx, model)
	if err != nil {
		if registry.IsConfigError(err) {
			return s.configNotice(out, "unresolved", err, log), nil
		}
		return nil, err
	}
	capability := ai.CapabilityOf(resolved.Backend)

	system := prompt.BuildSystemInstruction(prompt.Input{
		Character:      char,
		User:           user,
		Rules:          settings.Rules,
		Context:        settings.AI,
		KidMode:        user.KidMode,
		Stats:          session.Stats,
		NarrativeState: session.NarrativeState,
		IncludedFields: req.IncludedFields,
	})
	aiReq := ai.Request{
		Model:             resolved.Model,
		SystemInstruction: system,
		History:           history,
		MaxHistory:        settings.AI.MaxHistory,
		MaxTokens:         settings.AI.MaxResponseTokens,
		Mode:              char.Mode,
		UserID:            req.UserID,
	}
	if settings.AI.Temperature > 0 {
		t := settings.AI.Temperature
		aiReq.Temperature = &t
	}

	turnCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result, err := dispatch(turnCtx, resolved.Backend, aiReq, onUpdate)

	// the turn is stored even if the caller went away meanwhile
	persistCtx := context.WithoutCancel(ctx)
	if err != nil {
		if ai.IsConfigError(err) {
			return s.configNotice(out, string(capability), err, log), nil
		}
		chatTurns.WithLabelValues(string(capability), turnOutcomeFailed).Inc()
		log.Error("Chat turn failed",
			zap.String("model", model),
			zap.String("connection_id", resolved.Connection.ID),
			zap.Error(err),
		)
		botMsg := s.newMessage(req.UserID, char.ID, models.SenderBot, TransportFailureText)
		if appendErr := s.deps.Chat.Append(persistCtx, botMsg); appendErr != nil {
			log.Error("Failed to store failure reply", zap.Error(appendErr))
		} else {
			out.BotMessage = botMsg
		}
		out.ResponseText = TransportFailureText
		out.Failed = true
		return out, fmt.Errorf("chat turn failed: %w", err)
	}

	newStats := session.Stats.Apply(char.Stats, result.StatChanges)
	newState := session.NarrativeState
	if result.NewNarrativeState != nil {
		newState = result.NewNarrativeState
	}
	for _, ch := range result.StatChanges {
		if _, ok := char.FindStat(ch.StatID); !ok {
			log.Warn("Model reported a change for an unknown stat", zap.String("stat_id", ch.StatID))
			continue
		}
		statChangesApplied.Inc()
	}

	if err := s.deps.Sessions.Save(persistCtx, &models.SessionState{
		UserID:         req.UserID,
		CharacterID:    char.ID,
		Stats:          newStats,
		NarrativeState: newState,
		UpdatedAt:      s.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to store session state: %w", err)
	}

	out.ResponseText = result.ResponseText
	out.StatChanges = result.StatChanges
	out.Stats = newStats
	out.NarrativeState = newState

	if strings.TrimSpace(result.ResponseText) != "" {
		botMsg := s.newMessage(req.UserID, char.ID, models.SenderBot, result.ResponseText)
		if err := s.deps.Chat.Append(persistCtx, botMsg); err != nil {
			return nil, fmt.Errorf("failed to store reply: %w", err)
		}
		out.BotMessage = botMsg
	} else {
		log.Warn("Model returned no visible text", zap.String("model", model))
	}

	chatTurns.WithLabelValues(string(capability), turnOutcomeOK).Inc()
	log.Info("Chat turn completed",
		zap.String("model", model),
		zap.String("capability", string(capability)),
		zap.Int("stat_changes", len(result.StatChanges)),
		zap.Bool("narrative_updated", result.NewNarrativeState != nil),
	)
	return out, nil
}

// dispatch resolves one turn with the richest capability the backend has.
func dispatch(ctx context.Context, backend ai.Backend, req ai.Request, onUpdate func(string)) (*models.TurnResult, error) {
	switch b := backend.(type) {
	case ai.StructuredToolCapable:
		res, _, err := b.GenerateTurn(ctx, req)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil && res.ResponseText != "" {
			onUpdate(res.ResponseText)
		}
		return res, nil
	case ai.PlainStreamOnly:
		stream, err := b.Stream(ctx, req)
		if err != nil {
			return nil, err
		}
		text, err := ConsumeStream(stream, onUpdate)
		if err != nil {
			return nil, err
		}
		return ai.ResolveTurn(text, nil), nil
	default:
		text, _, err := backend.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(text)
		}
		return ai.ResolveTurn(text, nil), nil
	}
}

func (s *chatServiceImpl) configNotice(out *TurnOutcome, capability string, err error, log *zap.Logger) *TurnOutcome {
	chatTurns.WithLabelValues(capability, turnOutcomeConfigError).Inc()
	log.Warn("Chat turn not dispatched, connection setup incomplete", zap.String("model", out.Model), zap.Error(err))
	out.ConfigError = true
	switch {
	case out.Model == "":
		out.Notice = "No AI model is selected. Ask an administrator to set a default model."
	case errors.Is(err, ai.ErrMissingBaseURL):
		out.Notice = fmt.Sprintf("The connection for model %q has no base URL configured. Ask an administrator to fix it.", out.Model)
	case errors.Is(err, ai.ErrUnsupportedProvider):
		out.Notice = fmt.Sprintf("The connection for model %q uses an unsupported provider.", out.Model)
	default:
		out.Notice = fmt.Sprintf("No active AI connection serves model %q. Ask an administrator to add one.", out.Model)
	}
	return out
}

func (s *chatServiceImpl) loadUser(ctx context.Context, userID string) (models.User, error) {
	u, err := s.deps.Users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			// unknown users chat with default preferences
			return models.User{ID: userID, DisplayName: defaultUserName}, nil
		}
		return models.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	if u.DisplayName == "" {
		u.DisplayName = defaultUserName
	}
	return *u, nil
}

func (s *chatServiceImpl) loadSession(ctx context.Context, userID string, char *models.Character) (*models.SessionState, error) {
	st, err := s.deps.Sessions.Get(ctx, userID, char.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.SessionState{
				UserID:      userID,
				CharacterID: char.ID,
				Stats:       models.InitialSnapshot(char.Stats),
			}, nil
		}
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	if st.Stats == nil {
		st.Stats = models.InitialSnapshot(char.Stats)
	}
	return st, nil
}

func (s *chatServiceImpl) newMessage(userID, characterID string, sender models.Sender, text string) *models.ChatMessage {
	return &models.ChatMessage{
		ID:          uuid.NewString(),
		UserID:      userID,
		CharacterID: characterID,
		Sender:      sender,
		Text:        text,
		Timestamp:   s.now(),
	}
}

func (s *chatServiceImpl) publishModeration(ctx context.Context, msg *models.ChatMessage) {
	if s.deps.Publisher == nil {
		return
	}
	task := models.ModerationTask{
		TaskID:      uuid.NewString(),
		MessageID:   msg.ID,
		UserID:      msg.UserID,
		CharacterID: msg.CharacterID,
		Text:        msg.Text,
		CreatedAt:   msg.Timestamp,
	}
	if err := s.deps.Publisher.PublishModerationTask(ctx, task); err != nil {
		s.logger.Warn("Failed to queue message for moderation", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func (s *chatServiceImpl) StartChat(ctx context.Context, userID, characterID string) ([]models.ChatMessage, error) {
	unlock, err := s.locks.Lock(ctx, chatLockKey(userID, characterID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	char, err := s.deps.Characters.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	existing, err := s.deps.Chat.List(ctx, userID, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}
	greeting := strings.TrimSpace(char.Greeting)
	if greeting == "" {
		return []models.ChatMessage{}, nil
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	msg := s.newMessage(userID, characterID, models.SenderBot, prompt.SubstitutePlaceholders(greeting, char.Name, user.DisplayName))
	if err := s.deps.Chat.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store greeting: %w", err)
	}
	s.logger.Info("Chat started", zap.String("user_id", userID), zap.String("character_id", characterID))
	return []models.ChatMessage{*msg}, nil
}

func (s *chatServiceImpl) History(ctx context.Context, userID, characterID string) ([]models.ChatMessage, error) {
	if _, err := s.deps.Characters.GetCharacter(ctx, characterID); err != nil {
		return nil, err
	}
	return s.deps.Chat.List(ctx, userID, characterID)
}

func (s *chatServiceImpl) Session(ctx context.Context, userID, characterID string) (*models.SessionState, error) {
	char, err := s.deps.Characters.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	return s.loadSession(ctx, userID, char)
}

func (s *chatServiceImpl) DeleteMessage(ctx context.Context, userID, characterID, messageID string) error {
	unlock, err := s.locks.Lock(ctx, chatLockKey(userID, characterID))
	if err != nil {
		return err
	}
	defer unlock()
	return s.deps.Chat.Delete(ctx, userID, characterID, messageID)
}

// ResetChat removes every message and the session state of a chat.
func (s *chatServiceImpl) ResetChat(ctx context.Context, userID, characterID string) error {
	unlock, err := s.locks.Lock(ctx, chatLockKey(userID, characterID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.deps.Chat.Clear(ctx, userID, characterID); err != nil {
		return err
	}
	if err := s.deps.Sessions.Delete(ctx, userID, characterID); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	s.logger.Info("Chat reset", zap.String("user_id", userID), zap.String("character_id", characterID))
	return nil
}
