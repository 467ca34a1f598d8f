package game

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"codebreakers/domain"
)

type GameHandler struct {
	lobby       Lobby
	users       UserGetter
	leaderboard LeaderboardProvider
}

func NewGameHandler(lobby Lobby, users UserGetter, leaderboard LeaderboardProvider) *GameHandler {
	return &GameHandler{lobby: lobby, users: users, leaderboard: leaderboard}
}

// JoinGameHandler upgrades the request to a websocket and hands the session
// to the lobby. Everything that can fail with a proper HTTP status must fail
// before the upgrade; after it, errors travel as websocket close frames.
func (h *GameHandler) JoinGameHandler(ctx *gin.Context) {
	h.joinRoom(ctx, ctx.Param("roomid"))
}

// CreateGameHandler is a join with no target: the lobby mints the room.
func (h *GameHandler) CreateGameHandler(ctx *gin.Context) {
	h.joinRoom(ctx, "")
}

func (h *GameHandler) joinRoom(ctx *gin.Context, roomId string) {
	id := ctx.GetString("id")
	if id == "" {
		slog.Error("Unexpected error, id not found. What is the middleware doing?",
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
		)
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	user, err := h.users.GetUserById(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown-user"})
			return
		}
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Error("WS upgrade failed", "error", err)
		return
	}

	session := NewPlayerSession(user.Id, user.Username, NewWebsocketConnection(conn))
	jreq := NewRoomJoinRequest(roomId, session)
	h.lobby.ForwardPlayerJoinRequestToRoom(ctx.Request.Context(), jreq)

	select {
	case err := <-jreq.errChan:
		if err != nil {
			slog.Info("join refused", "player", user.Username, "room_id", roomId, "reason", err.Error())
			session.socket.Close(err.Error())
			return
		}
	case <-ctx.Request.Context().Done():
		session.socket.Close("request cancelled")
		return
	}

	go session.WritePump()
	session.ReadPump()
}

func (h *GameHandler) GetPublicGamesHandler(ctx *gin.Context) {
	descriptions := h.lobby.GetPublicRooms(ctx.Request.Context())

	rooms := make([]gin.H, 0, len(descriptions))
	for _, desc := range descriptions {
		rooms = append(rooms, gin.H{
			"id":         desc.id,
			"players":    desc.playersCount,
			"maxPlayers": desc.maxPlayers,
			"gameState":  desc.phase.String(),
		})
	}

	ctx.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *GameHandler) GetLeaderboardHandler(ctx *gin.Context) {
	limit := 10
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-limit"})
			return
		}
		if parsed > 100 {
			parsed = 100
		}
		limit = parsed
	}

	stats, err := h.leaderboard.Leaderboard(ctx.Request.Context(), limit)
	if err != nil {
		slog.Error("failed to fetch leaderboard", "error", err)
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"leaderboard": stats})
}
