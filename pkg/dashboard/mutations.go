package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"go.uber.org/zap"

	"github.com/aiodash/aiodash/internal/logging"
	"github.com/aiodash/aiodash/pkg/client"
	"github.com/aiodash/aiodash/pkg/protocol"
	"github.com/aiodash/aiodash/pkg/query"
	"github.com/aiodash/aiodash/pkg/validate"
)

// AnalyzeBrand starts a brand analysis. The brand list and analyses are
// refetched afterwards.
func (s *Service) AnalyzeBrand(ctx context.Context, req protocol.BrandAnalysisRequest) (protocol.Document, error) {
	return query.Mutation(ctx, s.cache, func(ctx context.Context) (protocol.Document, error) {
		return s.post(ctx, "analyze_brand", protocol.PathAnalyzeBrand, nil, req)
	}, BrandsKey(), AnalysesKey())
}

func (s *Service) OptimizationMetrics(ctx context.Context, req protocol.OptimizationMetricsRequest) (protocol.Document, error) {
	return s.post(ctx, "optimization_metrics", protocol.PathOptimizationMetrics, nil, req)
}

func (s *Service) AnalyzeQueries(ctx context.Context, req protocol.QueryAnalysisRequest) (protocol.Document, error) {
	return s.post(ctx, "analyze_queries", protocol.PathAnalyzeQueries, nil, req)
}

func (s *Service) post(ctx context.Context, route, path string, params url.Values, body any) (protocol.Document, error) {
	var out protocol.Document
	if err := s.api.Post(ctx, path, params, body, &out, client.WithRoute(route)); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleUserStatus activates or deactivates a user account.
func (s *Service) ToggleUserStatus(ctx context.Context, userID string) error {
	return s.cache.Mutate(ctx, func(ctx context.Context) error {
		return s.api.Post(ctx, s.ep.AdminUserToggleStatus(userID), nil, nil, nil,
			client.WithRoute("admin.toggle_status"))
	}, AdminUsersPrefix())
}

func (s *Service) UpdateUserRole(ctx context.Context, userID, role string) error {
	if role != protocol.RoleClient && role != protocol.RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}
	return s.cache.Mutate(ctx, func(ctx context.Context) error {
		return s.api.Put(ctx, s.ep.AdminUserRole(userID), url.Values{"new_role": {role}}, nil, nil,
			client.WithRoute("admin.user_role"))
	}, AdminUsersPrefix())
}

func (s *Service) ResolveError(ctx context.Context, errorID, notes string) error {
	params := url.Values{}
	if notes != "" {
		params.Set("resolution_notes", notes)
	}
	return s.cache.Mutate(ctx, func(ctx context.Context) error {
		return s.api.Put(ctx, s.ep.AdminResolveError(errorID), params, nil, nil,
			client.WithRoute("admin.resolve_error"))
	}, AdminErrorsPrefix())
}

func (s *Service) UpdateImprovement(ctx context.Context, improvementID string, u protocol.ImprovementUpdate) error {
	return s.cache.Mutate(ctx, func(ctx context.Context) error {
		return s.api.Put(ctx, s.ep.AdminImprovement(improvementID), u.Values(), nil, nil,
			client.WithRoute("admin.improvement"))
	}, AdminImprovementsPrefix())
}

// UploadServerLog validates form and streams file to the backend. A form
// that fails validation is rejected before any request is made.
func (s *Service) UploadServerLog(ctx context.Context, form validate.LogUploadForm, file io.Reader) (*protocol.UploadAccepted, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	if file == nil {
		return nil, validate.Errors{{Field: "file", Message: "Please choose a log file"}}
	}

	mf := client.NewForm().
		Set("brand_id", form.BrandID).
		Set("log_format", form.Format).
		Set("timezone", form.TimezoneOrDefault()).
		AddFile("file", form.Filename, file)

	accepted, err := query.Mutation(ctx, s.cache, func(ctx context.Context) (*protocol.UploadAccepted, error) {
		var out protocol.UploadAccepted
		err := s.api.Upload(ctx, s.ep.LogUpload(), mf, &out,
			client.WithRoute("logs.upload"), client.WithTimeout(s.opts.UploadTimeout))
		if err != nil {
			return nil, err
		}
		return &out, nil
	}, LogUploadsKey())
	if err != nil {
		return nil, err
	}
	s.log.Debug("log uploaded",
		logging.UploadID(accepted.UploadID),
		zap.String("brand_id", form.BrandID),
		zap.String("file", form.Filename))
	return accepted, nil
}

// AnalyzeSample analyzes pasted log lines without storing them.
func (s *Service) AnalyzeSample(ctx context.Context, form validate.SampleLogForm) (protocol.Document, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	params := url.Values{
		"log_sample": {form.Sample},
		"log_format": {form.Format},
	}
	return s.post(ctx, "logs.analyze_sample", s.ep.AnalyzeSample(), params, nil)
}
