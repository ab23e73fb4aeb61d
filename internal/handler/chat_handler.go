package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cv-chat-go/internal/service"
	"cv-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatHandler answers questions over plain HTTP and over a websocket.
type ChatHandler struct {
	chatService   service.ChatService
	corpusService service.CorpusService
}

func NewChatHandler(chatService service.ChatService, corpusService service.CorpusService) *ChatHandler {
	return &ChatHandler{chatService: chatService, corpusService: corpusService}
}

// flexID is an id sent either as a JSON number or as a numeric string.
type flexID uint

func (id *flexID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", data)
	}
	*id = flexID(n)
	return nil
}

type chatRequest struct {
	CVID     flexID `json:"cv_id" form:"cv_id"`
	Question string `json:"question" form:"question"`
}

// Ask handles {"cv_id": 1, "question": "..."} as JSON or form data and returns
// {"response": "..."}.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBind(&req); err != nil || req.CVID == 0 || strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both cv_id and question are required"})
		return
	}

	res, err := h.chatService.Ask(c.Request.Context(), uint(req.CVID), req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": res.Response, "degraded": res.Degraded})
}

type wsReply struct {
	Response string `json:"response,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Handle serves /chat/ws?cv_id=ID. Every text frame is answered on its own;
// earlier questions are not sent to the model.
func (h *ChatHandler) Handle(c *gin.Context) {
	cvID, err := strconv.ParseUint(c.Query("cv_id"), 10, 64)
	if err != nil || cvID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cv_id is required"})
		return
	}
	if _, err := h.corpusService.Get(c.Request.Context(), uint(cvID)); err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", err)
		return
	}
	defer conn.Close()
	log.Infof("[ChatHandler] websocket connected for cv %d", cvID)

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("[ChatHandler] websocket read failed: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var reply wsReply
		res, err := h.chatService.Ask(c.Request.Context(), uint(cvID), string(message))
		if err != nil {
			if statusFor(err) == http.StatusInternalServerError {
				log.Errorw("[ChatHandler] websocket question failed", "cv_id", cvID, "error", err)
				reply.Error = "internal server error"
			} else {
				reply.Error = err.Error()
			}
		} else {
			reply.Response, reply.Degraded = res.Response, res.Degraded
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Warnf("[ChatHandler] websocket write failed: %v", err)
			return
		}
	}
}
