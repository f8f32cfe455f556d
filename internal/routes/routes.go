package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"wapulse/internal/authz"
	"wapulse/internal/config"
	"wapulse/internal/handlers"
	"wapulse/internal/middleware"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Workspaces *handlers.WorkspaceHandler
	Roles      *handlers.RoleHandler
	Billing    *handlers.BillingHandler
	Contacts   *handlers.ContactHandler
	Templates  *handlers.TemplateHandler
	Broadcasts *handlers.BroadcastHandler
	Chats      *handlers.ChatHandler
	WhatsApp   *handlers.WhatsAppHandler
}

// Guards are the collaborators the middleware chain consults.
type Guards struct {
	Tokens        middleware.TokenParser
	Workspaces    middleware.WorkspaceResolver
	Roles         middleware.RoleLookup
	Subscriptions middleware.SubscriptionLookup
	Redis         *redis.Client
	RateLimit     config.RedisConfig
}

func SetupRoutes(r *gin.Engine, h Handlers, g Guards) *gin.Engine {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// ---- public
	limited := r.Group("/", middleware.RateLimit(g.Redis, g.RateLimit.RateLimit, g.RateLimit.Window))
	{
		limited.POST("/signup/initiate", h.Auth.SignupInitiate)
		limited.POST("/signup/verify", h.Auth.SignupVerify)
		limited.POST("/login", h.Auth.Login)
		limited.POST("/login/otp/request", h.Auth.RequestLoginCode)
		limited.POST("/login/otp/verify", h.Auth.VerifyLoginCode)
		limited.POST("/forgot-password", h.Auth.ForgotPassword)
		limited.POST("/reset-password", h.Auth.ResetPassword)
	}
	r.GET("/whatsapp/callback", h.WhatsApp.Callback)
	r.GET("/webhooks/whatsapp", h.WhatsApp.VerifyWebhook)
	r.POST("/webhooks/whatsapp", h.WhatsApp.ReceiveWebhook)

	// ---- account scoped
	authed := r.Group("/", middleware.AuthMiddleware(g.Tokens))
	{
		authed.GET("/me", h.Auth.Me)
		authed.PUT("/me", h.Auth.UpdateMe)
		authed.POST("/me/verify-email", h.Auth.RequestEmailVerification)
		authed.POST("/me/verify-email/confirm", h.Auth.ConfirmEmailVerification)

		authed.GET("/workspaces", h.Workspaces.List)
		authed.POST("/workspaces", h.Workspaces.Create)

		authed.GET("/plans", h.Billing.Plans)
		billing := authed.Group("/billing")
		{
			billing.POST("/orders", h.Billing.CreateOrder)
			billing.POST("/verify", h.Billing.VerifyPayment)
			billing.GET("/subscription", h.Billing.Subscription)
			billing.GET("/payments/:id/invoice", h.Billing.Invoice)
		}
	}

	// ---- workspace scoped
	ws := authed.Group("/", middleware.WorkspaceMiddleware(g.Workspaces))
	can := func(capability authz.Capability) gin.HandlerFunc {
		return middleware.RequireCapability(g.Roles, capability)
	}
	subscribed := middleware.RequireSubscription(g.Subscriptions)

	ws.GET("/workspace", h.Workspaces.Current)
	ws.PUT("/workspace", can(authz.ManageWorkspaceSettings), h.Workspaces.Update)

	// TEAM
	team := ws.Group("/team")
	{
		team.GET("", can(authz.ViewTeam), h.Workspaces.ListTeam)
		team.POST("", can(authz.InviteTeamMembers), h.Workspaces.AddMember)
		team.PUT("/:accountId", can(authz.EditTeamMembers), h.Workspaces.UpdateMember)
		team.DELETE("/:accountId", can(authz.RemoveTeamMembers), h.Workspaces.RemoveMember)
	}

	// ROLES
	roles := ws.Group("/roles")
	{
		roles.GET("", can(authz.ViewTeam), h.Roles.List)
		roles.GET("/capabilities", can(authz.ViewTeam), h.Roles.Capabilities)
		roles.POST("", can(authz.ManageRoles), h.Roles.Create)
		roles.PUT("/:id", can(authz.ManageRoles), h.Roles.Update)
		roles.DELETE("/:id", can(authz.ManageRoles), h.Roles.Delete)
	}

	// CONTACTS
	contacts := ws.Group("/contacts")
	{
		contacts.GET("", can(authz.ViewContacts), h.Contacts.List)
		contacts.POST("", can(authz.CreateContacts), subscribed, h.Contacts.Create)
		contacts.GET("/tags", can(authz.ViewContacts), h.Contacts.Tags)
		contacts.POST("/tags", can(authz.ManageTags), h.Contacts.AddTags)
		contacts.DELETE("/tags", can(authz.ManageTags), h.Contacts.RemoveTags)
		contacts.GET("/:id", can(authz.ViewContacts), h.Contacts.Get)
		contacts.PUT("/:id", can(authz.EditContacts), h.Contacts.Update)
		contacts.DELETE("/:id", can(authz.DeleteContacts), h.Contacts.Delete)
	}

	// TEMPLATES
	templates := ws.Group("/templates")
	{
		templates.GET("", can(authz.ViewTemplates), h.Templates.List)
		templates.POST("", can(authz.CreateTemplates), h.Templates.Create)
		templates.GET("/:id", can(authz.ViewTemplates), h.Templates.Get)
		templates.PUT("/:id", can(authz.EditTemplates), h.Templates.Update)
		templates.DELETE("/:id", can(authz.DeleteTemplates), h.Templates.Delete)
	}

	// BROADCASTS
	broadcasts := ws.Group("/broadcasts")
	{
		broadcasts.GET("", can(authz.ViewBroadcasts), h.Broadcasts.List)
		broadcasts.POST("", can(authz.CreateBroadcasts), can(authz.SendBroadcasts), subscribed, h.Broadcasts.Create)
		broadcasts.GET("/:id", can(authz.ViewBroadcasts), h.Broadcasts.Get)
		broadcasts.POST("/:id/cancel", can(authz.CancelBroadcasts), h.Broadcasts.Cancel)
		broadcasts.DELETE("/:id", can(authz.DeleteBroadcasts), h.Broadcasts.Delete)
	}

	// CHATS
	chats := ws.Group("/chats")
	{
		chats.GET("", can(authz.ViewChats), h.Chats.ListConversations)
		chats.GET("/ws", can(authz.ViewChats), h.Chats.Stream)
		chats.GET("/:id/messages", can(authz.ViewChats), h.Chats.ListMessages)
		chats.POST("/:id/messages", can(authz.ReplyChats), h.Chats.Reply)
		chats.POST("/:id/assign", can(authz.AssignChats), h.Chats.Assign)
		chats.POST("/:id/close", can(authz.CloseChats), h.Chats.Close)
	}

	// WHATSAPP
	wa := ws.Group("/whatsapp")
	{
		wa.GET("/connect", can(authz.ManageWhatsAppConnection), h.WhatsApp.Connect)
		wa.GET("/status", can(authz.AccessSettings), h.WhatsApp.Status)
		wa.DELETE("", can(authz.ManageWhatsAppConnection), h.WhatsApp.Disconnect)
	}

	return r
}
