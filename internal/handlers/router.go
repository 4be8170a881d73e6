package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Router struct {
	Orders *OrderHandler
	Cart   *CartHandler
	Print  *PrintHandler
	Socket *PrinterSocket

	// AdminAuth guards bulk transitions, reports and manual printing.
	// Nil leaves them open.
	AdminAuth gin.HandlerFunc
}

func (r Router) Setup() *gin.Engine {
	router := gin.Default()

	admin := []gin.HandlerFunc{}
	if r.AdminAuth != nil {
		admin = append(admin, r.AdminAuth)
	}
	guarded := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, admin...), h)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	cart := router.Group("/cart")
	{
		cart.POST("/items", r.Cart.AddItem)
		cart.GET("/:agent_id", r.Cart.GetCart)
	}

	orders := router.Group("/orders")
	{
		orders.POST("", r.Orders.PlaceOrder)
		orders.GET("/all", r.Orders.ListOrders)
		orders.GET("/:id", r.Orders.GetOrder)
		orders.GET("/reports/:id", guarded(r.Orders.GetReport)...)

		orders.PATCH("/confirm-bulk", guarded(r.Orders.ConfirmBulk)...)
		orders.PATCH("/out-for-delivery-bulk", guarded(r.Orders.OutForDeliveryBulk)...)
		orders.PATCH("/delivered-bulk", guarded(r.Orders.DeliveredBulk)...)
		orders.PATCH("/returned-bulk", guarded(r.Orders.ReturnedBulk)...)
		orders.PATCH("/cancel-bulk", guarded(r.Orders.CancelBulk)...)
	}

	printing := router.Group("/print")
	{
		printing.POST("/send-to-print", guarded(r.Print.SendToPrint)...)
		printing.GET("/print-status", r.Print.PrintStatus)
		printing.GET("/print-job-status/:jobId", r.Print.PrintJobStatus)
		printing.GET("/ws", r.Socket.Serve)
	}

	return router
}
