package dashboard

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
)

// HealthService is the gRPC service name reported alongside the overall ("") status.
const HealthService = "crop.Dashboard"

// NewGRPCServer returns a gRPC server exposing only the standard health service.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	hs := health.NewServer()
	setServing(hs, false)
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

// WatchHealth mirrors ready into hs every interval until ctx is done, then
// marks every service as not serving.
func WatchHealth(ctx context.Context, hs *health.Server, ready ReadyFunc, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Second
	}
	prev := ready()
	setServing(hs, prev)

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			if ok := ready(); ok != prev {
				log.Infof("dashboard: feed connected=%v", ok)
				setServing(hs, ok)
				prev = ok
			}
		}
	}
}

func setServing(hs *health.Server, ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(HealthService, st)
}
