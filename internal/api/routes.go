package api

import (
	"socialflow/internal/logging"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Flows        *FlowHandler
	Contacts     *ContactHandler
	Sequences    *SequenceHandler
	Integrations *IntegrationHandler
	Products     *ProductHandler
	Dashboard    *DashboardHandler
}

// Register mounts every API route on r behind the tenant check. Call it after
// logging.Setup so request logs use the configured output.
func Register(r gin.IRouter, h Handlers) {
	apiGroup := r.Group("/api", RequireTenant(), withLogger(logging.Component("api")))
	{
		apiGroup.GET("/messages", h.Dashboard.GetMessages)
		apiGroup.POST("/send", h.Dashboard.SendMessage)

		apiGroup.GET("/flows", h.Flows.ListFlows)
		apiGroup.POST("/flows", h.Flows.CreateFlow)
		apiGroup.POST("/flows/run", h.Flows.RunFlows)
		apiGroup.GET("/flows/analytics", h.Flows.GetAnalytics)
		apiGroup.GET("/flows/:id", h.Flows.GetFlow)
		apiGroup.PUT("/flows/:id", h.Flows.UpdateFlow)
		apiGroup.DELETE("/flows/:id", h.Flows.DeleteFlow)
		apiGroup.POST("/flows/:id/status", h.Flows.SetFlowStatus)
		apiGroup.GET("/flows/:id/stats", h.Flows.GetFlowStats)
		apiGroup.GET("/flows/:id/runs", h.Flows.GetFlowRuns)

		apiGroup.GET("/contacts", h.Contacts.GetContacts)
		apiGroup.GET("/contacts/export", h.Contacts.ExportContacts)
		apiGroup.GET("/contacts/:id", h.Contacts.GetContact)
		apiGroup.POST("/contacts/:id/tags", h.Contacts.AddTag)
		apiGroup.DELETE("/contacts/:id/tags/:tag", h.Contacts.RemoveTag)

		apiGroup.GET("/sequences", h.Sequences.ListSequences)
		apiGroup.POST("/sequences", h.Sequences.CreateSequence)
		apiGroup.POST("/sequences/:id/status", h.Sequences.SetSequenceStatus)
		apiGroup.POST("/sequences/:id/subscribe", h.Sequences.Subscribe)
		apiGroup.GET("/sequences/:id/subscriptions", h.Sequences.ListSubscriptions)

		apiGroup.GET("/integrations", h.Integrations.ListIntegrations)
		apiGroup.POST("/integrations", h.Integrations.SaveIntegration)
		apiGroup.DELETE("/integrations/:id", h.Integrations.DisconnectIntegration)

		apiGroup.GET("/products", h.Products.ListProducts)
		apiGroup.POST("/products", h.Products.CreateProduct)
	}
}
