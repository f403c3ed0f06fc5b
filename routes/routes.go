package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kinship/handlers"
	"kinship/middleware"
	"kinship/models"
	"kinship/security"
)

// Options configures the router. Live, when set, reports open websocket
// connections on /health.
type Options struct {
	Handler        *handlers.Handler
	Tokens         *security.Tokens
	Hub            http.Handler
	Live           interface{ ConnectedUsers() int }
	Limiter        *middleware.IPRateLimiter
	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxUploadBytes int64
	Log            *zap.Logger
}

// SetupRouter wires every route under /api plus /health and /ws.
func SetupRouter(o Options) *gin.Engine {
	router := gin.New()
	if o.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = o.MaxUploadBytes
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Limiter == nil {
		o.Limiter = middleware.NewIPRateLimiter(60, time.Minute)
	}

	corsConfig := cors.Config{
		AllowOrigins:     o.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(o.CORSOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}

	router.Use(
		middleware.RequestID(),
		middleware.Logger(o.Log),
		middleware.Recovery(o.Log),
		cors.New(corsConfig),
	)

	health := func(c *gin.Context) {
		body := gin.H{"status": "ok", "time": time.Now().Unix()}
		if o.Live != nil {
			body["liveUsers"] = o.Live.ConnectedUsers()
		}
		c.JSON(http.StatusOK, body)
	}
	router.GET("/health", health)

	if o.Hub != nil {
		router.GET("/ws", gin.WrapH(o.Hub))
	}

	h := o.Handler
	auth := middleware.Auth(o.Tokens)
	optional := middleware.OptionalAuth(o.Tokens)
	limit := middleware.RateLimit(o.Limiter)

	api := router.Group("/api", middleware.Timeout(o.RequestTimeout))
	api.GET("/health", health)
	if o.Hub != nil {
		api.GET("/ws", gin.WrapH(o.Hub))
	}

	users := api.Group("/users")
	{
		users.POST("/register", limit, h.Register)
		users.POST("/login", limit, h.Login)
		users.GET("/current", auth, h.Current)
		users.GET("/google/url", h.GoogleURL)
		users.GET("/google/callback", limit, h.GoogleCallback)
		users.POST("/google", limit, h.GoogleCredential)
	}

	profile := api.Group("/profile")
	{
		profile.GET("", auth, h.MyProfile)
		profile.POST("", auth, h.CreateProfile)
		profile.DELETE("", auth, h.DeleteProfile)
		profile.GET("/all", h.ListProfiles)
		profile.GET("/user/:userId", h.ProfileByUser)
		profile.GET("/:profileId", h.ProfileByID)
		profile.PUT("/:profileId", auth, h.UpdateProfile)
	}

	connect := api.Group("/connect", auth)
	{
		connect.GET("/followers", h.Followers)
		connect.GET("/following", h.Following)
		connect.POST("/follow/:userId", h.Follow)
		connect.POST("/unfollow/:userId", h.Unfollow)
	}

	post := api.Group("/post")
	{
		post.POST("", auth, h.CreatePost)
		post.GET("", optional, h.ListPosts)
		post.GET("/search", optional, h.SearchPosts)
		post.GET("/mine", auth, h.MyPosts)
		post.GET("/:id", optional, h.GetPost)
		post.PUT("/:id", auth, h.UpdatePost)
		post.DELETE("/:id", auth, h.DeletePost)
	}

	comment := api.Group("/comment")
	{
		comment.POST("", auth, h.AddComment)
		comment.GET("/:postId", optional, h.Thread)
		comment.PUT("/:commentId", auth, h.EditComment)
		comment.DELETE("/:postId/:commentId", auth, h.DeleteComment)
		comment.POST("/:commentId/reply", auth, h.AddReply)
		comment.PUT("/reply/:replyId", auth, h.EditReply)
		comment.DELETE("/reply/:replyId", auth, h.DeleteReply)
	}

	like := api.Group("/like", auth)
	for _, t := range []models.TargetType{models.TargetPost, models.TargetComment, models.TargetReply} {
		target := like.Group("/" + string(t))
		target.PUT("/:id", h.Like(t))
		target.PUT("/unlike/:id", h.Unlike(t))
		target.GET("/:id", h.Likers(t))
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("/vapid-public-key", h.VapidPublicKey)
		notifications.POST("/subscribe", auth, h.SubscribePush)
		notifications.GET("", auth, h.Notifications)
		notifications.PUT("/read-all", auth, h.MarkAllNotificationsRead)
		notifications.PUT("/:id/read", auth, h.MarkNotificationRead)
	}

	return router
}
