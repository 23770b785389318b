package server

import (
	"adtrack-service/internal/conf"
	"adtrack-service/internal/service"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(c *conf.Bootstrap, tracking *service.TrackingService, spend *service.SpendService) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Server != nil && c.Server.Http != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if t := conf.ParseDuration(c.Server.Http.Timeout, 0); t > 0 {
			opts = append(opts, http.Timeout(t))
		}
	}
	srv := http.NewServer(opts...)

	srv.Handle("/metrics", promhttp.Handler())
	registerTrackingRoutes(srv, tracking)
	registerSpendRoutes(srv, spend)
	return srv
}

func registerTrackingRoutes(srv *http.Server, svc *service.TrackingService) {
	r := srv.Route("/v1")

	// 账户
	r.POST("/accounts", func(ctx http.Context) error {
		var req service.CreateAccountRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CreateAccount(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.GET("/accounts/{account_id}", func(ctx http.Context) error {
		req := &service.GetAccountRequest{AccountID: ctx.Vars().Get("account_id")}
		reply, err := svc.GetAccount(ctx, req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.POST("/accounts/status", func(ctx http.Context) error {
		var req service.BulkStatusRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.BulkSetStatus(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	// 批次
	r.POST("/batches", func(ctx http.Context) error {
		var req service.CreateBatchRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CreateBatch(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.GET("/batches/{batch_id}", func(ctx http.Context) error {
		req := &service.GetBatchRequest{BatchID: ctx.Vars().Get("batch_id")}
		reply, err := svc.GetBatch(ctx, req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.DELETE("/batches/{batch_id}", func(ctx http.Context) error {
		req := &service.GetBatchRequest{BatchID: ctx.Vars().Get("batch_id")}
		if err := svc.DeleteBatch(ctx, req); err != nil {
			return err
		}
		return ctx.Result(200, okReply())
	})

	// 开票主体
	r.POST("/invoice-providers", func(ctx http.Context) error {
		var req service.CreateInvoiceProviderRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CreateInvoiceProvider(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.GET("/invoice-providers/{invoice_provider_id}", func(ctx http.Context) error {
		req := &service.GetInvoiceProviderRequest{InvoiceProviderID: ctx.Vars().Get("invoice_provider_id")}
		reply, err := svc.GetInvoiceProvider(ctx, req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.DELETE("/invoice-providers/{invoice_provider_id}", func(ctx http.Context) error {
		req := &service.GetInvoiceProviderRequest{InvoiceProviderID: ctx.Vars().Get("invoice_provider_id")}
		if err := svc.DeleteInvoiceProvider(ctx, req); err != nil {
			return err
		}
		return ctx.Result(200, okReply())
	})

	// 客户
	r.POST("/customers", func(ctx http.Context) error {
		var req service.CreateCustomerRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CreateCustomer(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.GET("/customers/{customer_id}", func(ctx http.Context) error {
		req := &service.GetCustomerRequest{CustomerID: ctx.Vars().Get("customer_id")}
		reply, err := svc.GetCustomer(ctx, req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.DELETE("/customers/{customer_id}", func(ctx http.Context) error {
		req := &service.GetCustomerRequest{CustomerID: ctx.Vars().Get("customer_id")}
		if err := svc.DeleteCustomer(ctx, req); err != nil {
			return err
		}
		return ctx.Result(200, okReply())
	})

	// 归属台账
	r.POST("/assignments/invoice-provider", func(ctx http.Context) error {
		var req service.AssignRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		if err := svc.AssignInvoiceProvider(ctx, &req); err != nil {
			return err
		}
		return ctx.Result(200, okReply())
	})
	r.POST("/assignments/invoice-provider/unassign", func(ctx http.Context) error {
		var req service.UnassignRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		if err := svc.UnassignInvoiceProvider(ctx, &req); err != nil {
			return err
		}
		return ctx.Result(200, okReply())
	})
	r.POST("/assignments/invoice-provider/bulk", func(ctx http.Context) error {
		var req service.BulkReassignRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		if err := svc.BulkReassignInvoiceProvider(ctx, &req); err != nil {
			return err
		}
		return ctx.Result(200, okReply())
	})
	r.POST("/assignments/customer", func(ctx http.Context) error {
		var req service.AssignRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		if err := svc.AssignCustomer(ctx, &req); err != nil {
			return err
		}
		return ctx.Result(200, okReply())
	})
	r.POST("/assignments/customer/unassign", func(ctx http.Context) error {
		var req service.UnassignRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		if err := svc.UnassignCustomer(ctx, &req); err != nil {
			return err
		}
		return ctx.Result(200, okReply())
	})
	r.POST("/assignments/customer/bulk", func(ctx http.Context) error {
		var req service.BulkReassignRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		if err := svc.BulkReassignCustomer(ctx, &req); err != nil {
			return err
		}
		return ctx.Result(200, okReply())
	})
	r.GET("/accounts/{account_id}/assignment", func(ctx http.Context) error {
		req := &service.GetAssignmentRequest{
			AccountID:  ctx.Vars().Get("account_id"),
			TargetType: ctx.Query().Get("target_type"),
		}
		reply, err := svc.GetCurrentAssignment(ctx, req)
		if err != nil {
			return err
		}
		if reply == nil {
			return ctx.Result(200, okReply())
		}
		return ctx.Result(200, reply)
	})
	r.GET("/accounts/{account_id}/assignments", func(ctx http.Context) error {
		req := &service.GetAssignmentRequest{
			AccountID:  ctx.Vars().Get("account_id"),
			TargetType: ctx.Query().Get("target_type"),
		}
		reply, err := svc.ListHistory(ctx, req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	// 分配规划
	r.POST("/allocation/suggest", func(ctx http.Context) error {
		var req service.SuggestRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.Suggest(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.POST("/allocation/execute", func(ctx http.Context) error {
		var req service.ExecuteAllocationRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.ExecuteAllocation(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

func registerSpendRoutes(srv *http.Server, svc *service.SpendService) {
	r := srv.Route("/v1")

	r.POST("/spend/snapshots", func(ctx http.Context) error {
		var req service.ImportSnapshotRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.ImportSnapshot(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.POST("/spend/reconcile", func(ctx http.Context) error {
		var req service.ReconcileRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.Reconcile(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	r.POST("/spend/reconcile-day", func(ctx http.Context) error {
		var req service.ReconcileDayRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.ReconcileDay(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

func okReply() map[string]interface{} {
	return map[string]interface{}{"success": true}
}
