package handler

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Post         *PostHandler
	Catalog      *CatalogHandler
	Conversation *ConversationHandler
	Notification *NotificationHandler
	Admin        *AdminHandler
	WebSocket    *WebSocketHandler
	Health       *HealthHandler
}
