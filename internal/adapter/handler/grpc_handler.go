package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/blood-service/internal/core/access"
	"github.com/rl1809/blood-service/internal/core/domain"
	"github.com/rl1809/blood-service/internal/core/service"
	"github.com/rl1809/blood-service/internal/observability"
)

const (
	ServiceName = "blood.v1.BloodService"

	MetadataUserID = "x-user-id"
	MetadataRole   = "x-role"
)

type Empty struct{}

type SubscriptionList struct {
	Subscriptions []domain.Subscription `json:"subscriptions"`
}

type InventoryList struct {
	Records []domain.InventoryRecord `json:"records"`
}

type DemandList struct {
	Demands []domain.Demand `json:"demands"`
}

type BloodServiceServer interface {
	ListAvailability(context.Context, *Empty) (*InventoryList, error)
	ListDemands(context.Context, *Empty) (*DemandList, error)
	Subscribe(context.Context, *json.RawMessage) (*MessageResponse, error)
	ListSubscriptions(context.Context, *Empty) (*SubscriptionList, error)
	UpsertInventory(context.Context, *json.RawMessage) (*MessageResponse, error)
	ListInventory(context.Context, *Empty) (*InventoryList, error)
	CreateDemand(context.Context, *json.RawMessage) (*MessageResponse, error)
	ListAdminDemands(context.Context, *Empty) (*DemandList, error)
}

// adminMethods lists the full method names gated on the admin role.
var adminMethods = map[string]bool{
	"/" + ServiceName + "/UpsertInventory":  true,
	"/" + ServiceName + "/ListInventory":    true,
	"/" + ServiceName + "/CreateDemand":     true,
	"/" + ServiceName + "/ListAdminDemands": true,
}

var BloodServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BloodServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("ListAvailability", BloodServiceServer.ListAvailability),
		unaryMethod("ListDemands", BloodServiceServer.ListDemands),
		unaryMethod("Subscribe", BloodServiceServer.Subscribe),
		unaryMethod("ListSubscriptions", BloodServiceServer.ListSubscriptions),
		unaryMethod("UpsertInventory", BloodServiceServer.UpsertInventory),
		unaryMethod("ListInventory", BloodServiceServer.ListInventory),
		unaryMethod("CreateDemand", BloodServiceServer.CreateDemand),
		unaryMethod("ListAdminDemands", BloodServiceServer.ListAdminDemands),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "blood/v1/blood_service",
}

func unaryMethod[Req, Resp any](name string, call func(BloodServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BloodServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(BloodServiceServer), ctx, req.(*Req))
			})
		},
	}
}

func RegisterBloodServiceServer(s grpc.ServiceRegistrar, srv BloodServiceServer) {
	s.RegisterService(&BloodServiceDesc, srv)
}

type GRPCHandler struct {
	subscriptions *service.SubscriptionService
	inventory     *service.InventoryService
	demands       *service.DemandService
	logger        *zap.Logger
	metrics       *observability.Metrics
}

func NewGRPCHandler(
	subscriptions *service.SubscriptionService,
	inventory *service.InventoryService,
	demands *service.DemandService,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{
		subscriptions: subscriptions,
		inventory:     inventory,
		demands:       demands,
		logger:        logger.With(zap.String("component", "grpc_server")),
		metrics:       metrics,
	}
}

// UnaryInterceptor derives the caller identity from request metadata,
// enforces the admin role on admin methods and records call metrics.
func (h *GRPCHandler) UnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if h.metrics != nil {
			h.metrics.GRPCRequests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		}
	}()

	md, _ := metadata.FromIncomingContext(ctx)
	id, err := access.Authenticate(firstValue(md, MetadataUserID), firstValue(md, MetadataRole))
	if err != nil {
		return nil, toStatus(err)
	}
	if adminMethods[info.FullMethod] {
		if err := id.RequireAdmin(); err != nil {
			return nil, toStatus(err)
		}
	}

	logger := h.logger.With(
		zap.String("method", info.FullMethod),
		zap.String("user_id", id.UserID),
	)
	ctx = access.WithIdentity(ctx, id)
	ctx = observability.ContextWithLogger(ctx, logger)

	return next(ctx, req)
}

func (h *GRPCHandler) ListAvailability(ctx context.Context, _ *Empty) (*InventoryList, error) {
	return h.listInventory(ctx)
}

func (h *GRPCHandler) ListInventory(ctx context.Context, _ *Empty) (*InventoryList, error) {
	return h.listInventory(ctx)
}

func (h *GRPCHandler) ListDemands(ctx context.Context, _ *Empty) (*DemandList, error) {
	return h.listDemands(ctx)
}

func (h *GRPCHandler) ListAdminDemands(ctx context.Context, _ *Empty) (*DemandList, error) {
	return h.listDemands(ctx)
}

func (h *GRPCHandler) Subscribe(ctx context.Context, req *json.RawMessage) (*MessageResponse, error) {
	var sub domain.Subscription
	if err := decodeRequest(req, &sub); err != nil {
		return nil, err
	}

	id, _ := access.FromContext(ctx)
	sub.UserID = id.UserID

	stored, err := h.subscriptions.Subscribe(ctx, sub)
	if err != nil {
		return nil, h.serviceError(ctx, err)
	}
	return &MessageResponse{Message: "Subscription added", ID: stored.ID}, nil
}

func (h *GRPCHandler) ListSubscriptions(ctx context.Context, _ *Empty) (*SubscriptionList, error) {
	id, _ := access.FromContext(ctx)

	subs, err := h.subscriptions.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, h.serviceError(ctx, err)
	}
	return &SubscriptionList{Subscriptions: subs}, nil
}

func (h *GRPCHandler) UpsertInventory(ctx context.Context, req *json.RawMessage) (*MessageResponse, error) {
	var rec domain.InventoryRecord
	if err := decodeRequest(req, &rec); err != nil {
		return nil, err
	}

	stored, _, err := h.inventory.Upsert(ctx, rec)
	if err != nil {
		return nil, h.serviceError(ctx, err)
	}
	return &MessageResponse{Message: "Blood inventory added/updated", ID: stored.ID}, nil
}

func (h *GRPCHandler) CreateDemand(ctx context.Context, req *json.RawMessage) (*MessageResponse, error) {
	var demand domain.Demand
	if err := decodeRequest(req, &demand); err != nil {
		return nil, err
	}

	stored, err := h.demands.Create(ctx, demand)
	if err != nil {
		return nil, h.serviceError(ctx, err)
	}
	return &MessageResponse{Message: "Demand added", ID: stored.ID}, nil
}

func (h *GRPCHandler) listInventory(ctx context.Context) (*InventoryList, error) {
	records, err := h.inventory.List(ctx)
	if err != nil {
		return nil, h.serviceError(ctx, err)
	}
	return &InventoryList{Records: records}, nil
}

func (h *GRPCHandler) listDemands(ctx context.Context) (*DemandList, error) {
	demands, err := h.demands.List(ctx)
	if err != nil {
		return nil, h.serviceError(ctx, err)
	}
	return &DemandList{Demands: demands}, nil
}

func decodeRequest(req *json.RawMessage, dst any) error {
	if req == nil || len(*req) == 0 {
		return status.Error(codes.InvalidArgument, "empty request")
	}
	if err := json.Unmarshal(*req, dst); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		return status.Error(codes.InvalidArgument, "invalid request body")
	}
	return nil
}

// serviceError converts err to a status, logging anything that is not a
// caller mistake.
func (h *GRPCHandler) serviceError(ctx context.Context, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		observability.FromContext(ctx).Error("store_failure", zap.Error(err))
	}
	return st
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "Unauthorized")
	case errors.Is(err, access.ErrForbidden):
		return status.Error(codes.PermissionDenied, "Access denied")
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
