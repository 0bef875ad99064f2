package dnd5

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the reference passthrough endpoints under /dnd5.
func RegisterRoutes(router *gin.RouterGroup, client *Client) {
	handler := &httpHandler{client: client}
	group := router.Group("/dnd5")
	{
		group.GET("/ability-scores", handler.listAbilityScores)
		group.GET("/ability-scores/:index", handler.getAbilityScore)
		group.GET("/spells", handler.listSpells)
		group.GET("/spells/:index", handler.getSpell)
		group.GET("/monsters", handler.listMonsters)
		group.GET("/monsters/:index", handler.getMonster)
	}
}

type httpHandler struct {
	client *Client
}

type filteredResponse struct {
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`
}

func (h *httpHandler) listAbilityScores(c *gin.Context) {
	doc, err := h.client.AbilityScores(c.Request.Context())
	writeDocument(c, doc, err)
}

func (h *httpHandler) getAbilityScore(c *gin.Context) {
	doc, err := h.client.AbilityScore(c.Request.Context(), c.Param("index"))
	writeDocument(c, doc, err)
}

func (h *httpHandler) listSpells(c *gin.Context) {
	ctx := c.Request.Context()

	if raw, ok := c.GetQuery("level"); ok {
		level, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "level must be an integer"})
			return
		}
		docs, err := h.client.SpellsByLevel(ctx, level)
		writeFiltered(c, docs, err)
		return
	}
	if school, ok := c.GetQuery("school"); ok {
		docs, err := h.client.SpellsBySchool(ctx, school)
		writeFiltered(c, docs, err)
		return
	}

	doc, err := h.client.Spells(ctx)
	writeDocument(c, doc, err)
}

func (h *httpHandler) getSpell(c *gin.Context) {
	doc, err := h.client.Spell(c.Request.Context(), c.Param("index"))
	writeDocument(c, doc, err)
}

func (h *httpHandler) listMonsters(c *gin.Context) {
	ctx := c.Request.Context()

	if rating, ok := c.GetQuery("challenge_rating"); ok {
		docs, err := h.client.MonstersByChallengeRating(ctx, rating)
		writeFiltered(c, docs, err)
		return
	}

	doc, err := h.client.Monsters(ctx)
	writeDocument(c, doc, err)
}

func (h *httpHandler) getMonster(c *gin.Context) {
	doc, err := h.client.Monster(c.Request.Context(), c.Param("index"))
	writeDocument(c, doc, err)
}

func writeDocument(c *gin.Context, doc json.RawMessage, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

func writeFiltered(c *gin.Context, docs []json.RawMessage, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, filteredResponse{Count: len(docs), Results: docs})
}

func writeError(c *gin.Context, err error) {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrInvalidAbilityIndex),
		errors.Is(err, ErrInvalidSpellLevel),
		errors.Is(err, ErrInvalidChallengeRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr) && apiErr.StatusCode > 0:
		c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
