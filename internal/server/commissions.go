package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"commline/internal/domain"
	"commline/internal/engine"
	"commline/internal/events"
)

type IdentityPath struct {
	Identity string `path:"identity"`
}

func registerCommissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-commissions",
		Method:      http.MethodGet,
		Path:        "/commissions",
		Summary:     "List visible commissions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CommissionResponse `json:"body"`
	}, error) {
		list, err := e.Visible(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]CommissionResponse, 0, len(list))
		for _, c := range list {
			out = append(out, toResponse(ctx, e, c))
		}
		return &struct {
			Body []CommissionResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-commission",
		Method:      http.MethodGet,
		Path:        "/commissions/{identity}",
		Summary:     "Get a commission by identity",
	}, func(ctx context.Context, input *IdentityPath) (*struct {
		Body CommissionResponse `json:"body"`
	}, error) {
		c, ok, err := e.Store.Find(ctx, input.Identity)
		if err != nil {
			return nil, handleError(err)
		}
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "commission not found", nil)
		}
		return &struct {
			Body CommissionResponse `json:"body"`
		}{Body: toResponse(ctx, e, c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-commission",
		Method:        http.MethodPost,
		Path:          "/commissions",
		Summary:       "Submit a commission",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body SubmitCommissionRequest
	}) (*struct {
		Body CommissionResponse `json:"body"`
	}, error) {
		c, err := e.Submit(ctx, engine.SubmitOptions{
			Title:           input.Body.Title,
			Description:     input.Body.Description,
			Category:        input.Body.Category,
			Artist:          input.Body.Artist,
			ContactEmail:    input.Body.ContactEmail,
			Date:            input.Body.Date,
			ReferencePhotos: input.Body.ReferencePhotos,
			Direct:          input.Body.Direct,
			AgreedPrice:     input.Body.Price,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommissionResponse `json:"body"`
		}{Body: toResponse(ctx, e, c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-commission",
		Method:      http.MethodPost,
		Path:        "/commissions/{identity}/accept",
		Summary:     "Accept a pending commission",
	}, func(ctx context.Context, input *struct {
		IdentityPath
		Body AcceptCommissionRequest
	}) (*struct {
		Body CommissionResponse `json:"body"`
	}, error) {
		c, err := e.Accept(ctx, input.Identity, input.Body.Artist)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommissionResponse `json:"body"`
		}{Body: toResponse(ctx, e, c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deliver-commission",
		Method:      http.MethodPost,
		Path:        "/commissions/{identity}/deliver",
		Summary:     "Mark an ongoing commission delivered (unclaimed)",
	}, func(ctx context.Context, input *IdentityPath) (*struct {
		Body CommissionResponse `json:"body"`
	}, error) {
		c, err := e.MarkDelivered(ctx, input.Identity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommissionResponse `json:"body"`
		}{Body: toResponse(ctx, e, c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-commission",
		Method:      http.MethodPost,
		Path:        "/commissions/{identity}/complete",
		Summary:     "Complete a commission",
	}, func(ctx context.Context, input *struct {
		IdentityPath
		Body CompleteCommissionRequest
	}) (*struct {
		Body CommissionResponse `json:"body"`
	}, error) {
		c, err := e.Complete(ctx, input.Identity, engine.CompleteOptions{
			Notes:       input.Body.Notes,
			AgreedPrice: input.Body.Price,
			ProofPhotos: input.Body.ProofPhotos,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommissionResponse `json:"body"`
		}{Body: toResponse(ctx, e, c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-commission",
		Method:      http.MethodPost,
		Path:        "/commissions/{identity}/cancel",
		Summary:     "Cancel an ongoing commission",
	}, func(ctx context.Context, input *struct {
		IdentityPath
		Body CancelCommissionRequest
	}) (*struct {
		Body CommissionResponse `json:"body"`
	}, error) {
		c, err := e.Cancel(ctx, input.Identity, input.Body.Reason, input.Body.Confirmation)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommissionResponse `json:"body"`
		}{Body: toResponse(ctx, e, c)}, nil
	})
}

func registerSocial(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "toggle-like",
		Method:      http.MethodPost,
		Path:        "/commissions/{identity}/like",
		Summary:     "Toggle like on a commission",
	}, func(ctx context.Context, input *IdentityPath) (*struct {
		Body LikeResponse `json:"body"`
	}, error) {
		liked, count, err := e.ToggleLike(ctx, input.Identity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LikeResponse `json:"body"`
		}{Body: LikeResponse{Identity: input.Identity, Liked: liked, Likes: count}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "block-commission",
		Method:      http.MethodPost,
		Path:        "/commissions/{identity}/block",
		Summary:     "Block a commission",
	}, func(ctx context.Context, input *IdentityPath) (*struct{}, error) {
		if err := e.Block(ctx, input.Identity); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "not-interested",
		Method:      http.MethodPost,
		Path:        "/commissions/{identity}/not-interested",
		Summary:     "Hide a commission as not interesting",
	}, func(ctx context.Context, input *IdentityPath) (*struct{}, error) {
		if err := e.NotInterested(ctx, input.Identity); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-commission",
		Method:      http.MethodPost,
		Path:        "/commissions/{identity}/report",
		Summary:     "Report a commission",
	}, func(ctx context.Context, input *IdentityPath) (*struct{}, error) {
		if err := e.Report(ctx, input.Identity); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-following",
		Method:      http.MethodGet,
		Path:        "/following",
		Summary:     "List followed artists",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body FollowingResponse `json:"body"`
	}, error) {
		return &struct {
			Body FollowingResponse `json:"body"`
		}{Body: FollowingResponse{Following: e.Social.Following(ctx)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-following",
		Method:      http.MethodPut,
		Path:        "/following/{artist}",
		Summary:     "Follow or unfollow an artist",
	}, func(ctx context.Context, input *struct {
		Artist string `path:"artist"`
		Body   SetFollowingRequest
	}) (*struct{}, error) {
		if err := e.SetFollowing(ctx, input.Artist, input.Body.Following); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "tail-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Tail the event log",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body []events.Event `json:"body"`
	}, error) {
		evts, err := e.Events.Tail(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []events.Event `json:"body"`
		}{Body: evts}, nil
	})
}

func toResponse(ctx context.Context, e engine.Engine, c domain.Commission) CommissionResponse {
	identity := domain.ResolveIdentity(c)
	return CommissionResponse{
		Commission: c,
		Identity:   identity,
		Liked:      e.Social.IsLiked(ctx, identity),
		Likes:      e.Social.LikeCount(ctx, identity),
	}
}
