package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/messenger"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/ws"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SessionHandler serves GET /ws/messenger. Each connection owns one
// messenger.Session: inbound frames are intents, outbound frames are state
// snapshots and intent results.
type SessionHandler struct {
	services messenger.Services
	window   int
	upgrader websocket.Upgrader
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(services messenger.Services, window int, allowedOrigins []string) *SessionHandler {
	return &SessionHandler{
		services: services,
		window:   window,
		upgrader: newUpgrader(allowedOrigins),
	}
}

// Frame types
const (
	FrameState  = "state"
	FrameResult = "result"
)

type intentFrame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type replyFrame struct {
	ID      string      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Intent  string      `json:"intent,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// intentParams covers the intents that only address a chat, message or invitation
type intentParams struct {
	ChatID       string `json:"chat_id"`
	MessageID    string `json:"message_id"`
	Text         string `json:"text"`
	Emoji        string `json:"emoji"`
	Query        string `json:"query"`
	InvitationID string `json:"invitation_id"`
}

type tokenIdentity string

func (t tokenIdentity) UserID() string        { return string(t) }
func (t tokenIdentity) IsAuthenticated() bool { return t != "" }

// Connect handles GET /ws/messenger
// @Summary 메신저 세션 WebSocket
// @Tags messenger
// @Router /ws/messenger [get]
func (h *SessionHandler) Connect(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	scope := middleware.GetScope(c)
	tokenCompany := middleware.GetTokenCompanyID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	untrack := middleware.TrackWebSocket("session")
	sess := messenger.NewSession(h.services, tokenIdentity(userID), nil, messenger.WithMessageWindow(h.window))
	client := ws.NewClient(nil, conn, userID)
	ctx, cancel := context.WithCancel(context.Background())

	// 상태 변경은 합쳐서 최신 스냅샷만 전송
	changed := make(chan struct{}, 1)
	stopListening := sess.OnChange(func(messenger.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	client.OnMessage(func(data []byte) {
		h.handleFrame(ctx, sess, client, tokenCompany, data)
	})

	go client.WritePump()
	go func() {
		defer func() {
			stopListening()
			sess.Close()
			cancel()
			untrack()
		}()
		for {
			select {
			case <-changed:
				client.Send(&replyFrame{Type: FrameState, Payload: sess.State()})
			case <-client.Done():
				return
			}
		}
	}()
	go func() {
		sess.SetScope(ctx, scope)
		client.ReadPump()
	}()
}

func (h *SessionHandler) handleFrame(ctx context.Context, sess *messenger.Session, client *ws.Client, tokenCompany string, data []byte) {
	var frame intentFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
		client.Send(&replyFrame{Type: FrameResult, Error: "malformed frame"})
		return
	}

	result, err := h.runIntent(ctx, sess, tokenCompany, &frame)
	reply := &replyFrame{ID: frame.ID, Type: FrameResult, Intent: frame.Type, Payload: result}
	if err != nil {
		reply.Error = err.Error()
		pkglogger.GetLogger().Debug().Err(err).
			Str("user_id", client.UserID()).
			Str("intent", frame.Type).
			Msg("messenger intent rejected")
	}
	client.Send(reply)
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return nil
}

// runIntent executes one intent frame. tokenCompany, when set, pins set_scope
// to the company the connection authenticated for.
func (h *SessionHandler) runIntent(ctx context.Context, sess *messenger.Session, tokenCompany string, f *intentFrame) (interface{}, error) {
	var p intentParams
	switch f.Type {
	case "set_scope":
		var scope domain.Scope
		if err := decode(f.Payload, &scope); err != nil {
			return nil, err
		}
		if !scope.Valid() {
			return nil, fmt.Errorf("%w: valid company required", common.ErrInvalidInput)
		}
		if tokenCompany != "" && scope.CompanyID != tokenCompany {
			return nil, fmt.Errorf("%w: company does not match token", common.ErrForbidden)
		}
		sess.SetScope(ctx, scope)
		return gin.H{"base_path": scope.BasePath()}, nil

	case "refresh_chats":
		return nil, sess.RefreshChats(ctx)

	case "create_chat":
		var req domain.CreateChatRequest
		if err := decode(f.Payload, &req); err != nil {
			return nil, err
		}
		return sess.CreateChat(ctx, &req)

	case "send_message":
		var req struct {
			ChatID string `json:"chat_id"`
			domain.SendMessageRequest
		}
		if err := decode(f.Payload, &req); err != nil {
			return nil, err
		}
		return sess.SendMessage(ctx, req.ChatID, &req.SendMessageRequest)

	case "save_draft":
		var req struct {
			ChatID string `json:"chat_id"`
			domain.SaveDraftRequest
		}
		if err := decode(f.Payload, &req); err != nil {
			return nil, err
		}
		return sess.SaveDraft(ctx, req.ChatID, &req.SaveDraftRequest)

	case "set_user_status":
		var req domain.SetStatusRequest
		if err := decode(f.Payload, &req); err != nil {
			return nil, err
		}
		return sess.SetUserStatus(ctx, &req)

	case "send_contact_invitation":
		var req domain.SendInvitationRequest
		if err := decode(f.Payload, &req); err != nil {
			return nil, err
		}
		return sess.SendContactInvitation(ctx, &req)

	case "update_chat_settings":
		var req domain.ChatSettings
		if err := decode(f.Payload, &req); err != nil {
			return nil, err
		}
		return sess.UpdateChatSettings(ctx, &req)

	case "get_work_contacts":
		return sess.GetWorkContacts(ctx)

	case "get_saved_contacts":
		return sess.GetSavedContacts(), nil

	case "get_permissions":
		perms := sess.Permissions()
		return gin.H{"can_view": perms.CanView(), "can_edit": perms.CanEdit(), "can_delete": perms.CanDelete()}, nil

	case "clear_error":
		sess.ClearError()
		return nil, nil
	}

	if err := decode(f.Payload, &p); err != nil {
		return nil, err
	}
	switch f.Type {
	case "set_active_chat":
		return nil, sess.SetActiveChat(ctx, p.ChatID)
	case "edit_message":
		return sess.EditMessage(ctx, p.ChatID, p.MessageID, p.Text)
	case "delete_message":
		return sess.DeleteMessage(ctx, p.ChatID, p.MessageID)
	case "pin_message":
		return sess.PinMessage(ctx, p.ChatID, p.MessageID)
	case "unpin_message":
		return sess.UnpinMessage(ctx, p.ChatID, p.MessageID)
	case "add_reaction":
		return sess.AddReaction(ctx, p.ChatID, p.MessageID, p.Emoji)
	case "remove_reaction":
		return sess.RemoveReaction(ctx, p.ChatID, p.MessageID, p.Emoji)
	case "mark_as_read":
		n, err := sess.MarkAsRead(ctx, p.ChatID, p.MessageID)
		return gin.H{"marked": n}, err
	case "search_messages":
		return sess.SearchMessages(ctx, p.Query, p.ChatID)
	case "accept_invitation":
		return sess.AcceptInvitation(ctx, p.InvitationID)
	case "decline_invitation":
		return sess.DeclineInvitation(ctx, p.InvitationID)
	}
	return nil, fmt.Errorf("%w: unknown intent %q", common.ErrInvalidInput, f.Type)
}
