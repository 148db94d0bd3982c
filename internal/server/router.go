package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lumeno/chatsync/internal/query"
	"github.com/lumeno/chatsync/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultMessagePageSize = 50

var (
	errMissingDatabase   = errors.New("database dependency required")
	errMissingScopeIndex = errors.New("scope index dependency required")
)

// Dependencies wires the read-only cache API. Writes never arrive over HTTP;
// they only enter through the sync layer.
type Dependencies struct {
	Database *gorm.DB
	Scopes   *query.Index
	Logger   *zap.Logger
}

// NewHTTPHandler builds the local UI's read API over the cache.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Database == nil {
		return nil, errMissingDatabase
	}
	if deps.Scopes == nil {
		return nil, errMissingScopeIndex
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		db:     deps.Database,
		scopes: deps.Scopes,
		logger: logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/v1/channels", handler.handleListChannels)
	router.GET("/v1/channels/:type/:id/messages", handler.handleListMessages)
	router.GET("/v1/me", handler.handleCurrentUser)

	return router, nil
}

type httpHandler struct {
	db     *gorm.DB
	scopes *query.Index
	logger *zap.Logger
}

type channelResponsePayload struct {
	CID           string          `json:"cid"`
	Type          string          `json:"type"`
	Frozen        bool            `json:"frozen"`
	Team          string          `json:"team"`
	MemberCount   int             `json:"member_count"`
	LastMessageAt *time.Time      `json:"last_message_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ExtraData     json.RawMessage `json:"extra_data"`
}

type messageResponsePayload struct {
	ID        string          `json:"id"`
	CID       string          `json:"cid"`
	AuthorID  string          `json:"author_id"`
	Text      string          `json:"text"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExtraData json.RawMessage `json:"extra_data"`
}

type currentUserResponsePayload struct {
	UserID         string          `json:"user_id"`
	Role           string          `json:"role"`
	Online         bool            `json:"online"`
	UnreadChannels int             `json:"unread_channels"`
	UnreadMessages int             `json:"unread_messages"`
	ExtraData      json.RawMessage `json:"extra_data"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListChannels(c *gin.Context) {
	scopeName := c.Query("scope")
	scope, err := query.NewScope(scopeName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_scope"})
		return
	}

	cids, err := h.scopes.ChannelCIDs(c.Request.Context(), scope)
	if err != nil {
		h.logger.Error("scope listing failed", zap.String("scope", scope.Name()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scope_listing_failed"})
		return
	}
	if len(cids) == 0 {
		c.JSON(http.StatusOK, gin.H{"channels": []channelResponsePayload{}})
		return
	}

	var channels []store.Channel
	if err := h.db.WithContext(c.Request.Context()).
		Where("cid IN ?", cids).
		Find(&channels).Error; err != nil {
		h.logger.Error("channel lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "channel_lookup_failed"})
		return
	}

	byCID := make(map[string]store.Channel, len(channels))
	for _, channel := range channels {
		byCID[channel.CID] = channel
	}
	// Keep the scope's attachment order.
	response := make([]channelResponsePayload, 0, len(cids))
	for _, cid := range cids {
		channel, ok := byCID[cid]
		if !ok {
			continue
		}
		response = append(response, channelResponsePayload{
			CID:           channel.CID,
			Type:          channel.ChannelType,
			Frozen:        channel.Frozen,
			Team:          channel.Team,
			MemberCount:   channel.MemberCount,
			LastMessageAt: channel.LastMessageAt,
			CreatedAt:     channel.CreatedAt,
			UpdatedAt:     channel.UpdatedAt,
			ExtraData:     json.RawMessage(channel.ExtraData),
		})
	}

	c.JSON(http.StatusOK, gin.H{"channels": response})
}

func (h *httpHandler) handleListMessages(c *gin.Context) {
	rawCID := c.Param("type") + ":" + c.Param("id")
	cid, err := store.ParseChannelCID(rawCID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cid"})
		return
	}

	limit := defaultMessagePageSize
	if rawLimit := c.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}

	var messages []store.Message
	if err := h.db.WithContext(c.Request.Context()).
		Where("channel_cid = ?", cid.String()).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		h.logger.Error("message lookup failed", zap.String("cid", cid.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "message_lookup_failed"})
		return
	}

	response := make([]messageResponsePayload, 0, len(messages))
	for _, message := range messages {
		response = append(response, messageResponsePayload{
			ID:        message.MessageID,
			CID:       message.ChannelCID,
			AuthorID:  message.AuthorID,
			Text:      message.Text,
			CreatedAt: message.CreatedAt,
			UpdatedAt: message.UpdatedAt,
			ExtraData: json.RawMessage(message.ExtraData),
		})
	}

	c.JSON(http.StatusOK, gin.H{"messages": response})
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	var current store.CurrentUser
	err := h.db.WithContext(c.Request.Context()).
		Where("slot = ?", store.CurrentUserSlot).
		Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_current_user"})
		return
	}
	if err != nil {
		h.logger.Error("current user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "current_user_lookup_failed"})
		return
	}

	var user store.User
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", current.UserID).
		Take(&user).Error; err != nil {
		h.logger.Error("current user record missing", zap.String("user_id", current.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "current_user_lookup_failed"})
		return
	}

	c.JSON(http.StatusOK, currentUserResponsePayload{
		UserID:         user.UserID,
		Role:           user.Role,
		Online:         user.Online,
		UnreadChannels: current.UnreadChannels,
		UnreadMessages: current.UnreadMessages,
		ExtraData:      json.RawMessage(user.ExtraData),
	})
}
