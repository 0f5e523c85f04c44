package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"quest-launchpad/internal/middleware"
)

type Handlers struct {
	Quests  *QuestHandler
	Claims  *ClaimHandler
	Players *PlayerHandler
	Uploads *UploadHandler
}

// NewRouter 注册全部 API 路由；metrics 为 nil 时不暴露指标端点
func NewRouter(h Handlers, auth *middleware.WalletAuth, limiter *middleware.RateLimiter, metricsPath string, metrics http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Monitor)

	router.HandleFunc("/health", HandleHealth).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle(metricsPath, metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	if limiter != nil {
		api.Use(limiter.Middleware)
	}

	// 公开接口
	public := api.NewRoute().Subrouter()
	public.HandleFunc("/quests", h.Quests.ListQuests).Methods(http.MethodGet)
	public.HandleFunc("/quests/{address}", h.Quests.GetQuest).Methods(http.MethodGet)
	public.HandleFunc("/quests/{address}/qr", h.Quests.GetQRPayload).Methods(http.MethodGet)
	public.HandleFunc("/players/{wallet}", h.Players.GetProfile).Methods(http.MethodGet)
	public.HandleFunc("/leaderboard", h.Players.GetLeaderboard).Methods(http.MethodGet)
	public.HandleFunc("/tokens", h.Quests.ListTokens).Methods(http.MethodGet)

	optional := api.NewRoute().Subrouter()
	optional.Use(auth.Optional)
	optional.HandleFunc("/quests/{address}/eligibility", h.Claims.GetEligibility).Methods(http.MethodGet)

	// 需要钱包签名
	signed := api.NewRoute().Subrouter()
	signed.Use(auth.Required)
	signed.HandleFunc("/quests", h.Quests.CreateQuest).Methods(http.MethodPost)
	signed.HandleFunc("/quests/{address}/fund", h.Quests.FundQuest).Methods(http.MethodPost)
	signed.HandleFunc("/quests/{address}/active", h.Quests.SetActive).Methods(http.MethodPost)
	signed.HandleFunc("/quests/{address}/refresh", h.Quests.RefreshCount).Methods(http.MethodPost)
	signed.HandleFunc("/quests/{address}/verify/qr", h.Claims.VerifyQR).Methods(http.MethodPost)
	signed.HandleFunc("/quests/{address}/verify/location", h.Claims.VerifyLocation).Methods(http.MethodPost)
	signed.HandleFunc("/quests/{address}/verify/social", h.Claims.VerifySocial).Methods(http.MethodPost)
	signed.HandleFunc("/quests/{address}/claim/prepare", h.Claims.Prepare).Methods(http.MethodPost)
	signed.HandleFunc("/quests/{address}/claim", h.Claims.Submit).Methods(http.MethodPost)
	signed.HandleFunc("/quests/{address}/claim/confirm", h.Claims.Confirm).Methods(http.MethodPost)
	signed.HandleFunc("/uploads", h.Uploads.Upload).Methods(http.MethodPost)

	return router
}
