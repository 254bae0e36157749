package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/tally/adapter/cli"
	licensingApp "github.com/felixgeelhaar/tally/internal/licensing/application"
	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

type packageInput struct {
	Package string `json:"package" jsonschema:"required"`
}

type featureInput struct {
	Feature string `json:"feature" jsonschema:"required"`
}

type statusOutput struct {
	Flavor   string                `json:"flavor"`
	Snapshot licensingApp.Snapshot `json:"snapshot"`
	Features map[string]bool       `json:"features"`
}

type priceOutput struct {
	Package string `json:"package"`
	SKU     string `json:"sku"`
	Price   string `json:"price,omitempty"`
	Cached  bool   `json:"cached"`
}

type packagesOutput struct {
	Packages     []priceOutput `json:"packages"`
	Professional string        `json:"professional,omitempty"`
	SwitchTo     string        `json:"switch_to,omitempty"`
}

func registerLicenceTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("licence.status").
		Description("Get the active licence tier, subscription and add-ons").
		Handler(func(ctx context.Context, input struct{}) (*statusOutput, error) {
			return licenceStatus(ctx, app)
		})

	srv.Tool("licence.feature").
		Description("Check whether an add-on feature is enabled").
		Handler(func(ctx context.Context, input featureInput) (map[string]any, error) {
			return featureEnabled(ctx, app, input)
		})

	srv.Tool("licence.price").
		Description("Get the cached store price of a package").
		Handler(func(ctx context.Context, input packageInput) (*priceOutput, error) {
			return packagePrice(ctx, app, input)
		})

	srv.Tool("licence.packages").
		Description("List the packages sold in the configured store").
		Handler(func(ctx context.Context, input struct{}) (*packagesOutput, error) {
			return listPackages(ctx, app)
		})

	srv.Tool("licence.refresh").
		Description("Query the store and reconcile the licence").
		Handler(func(ctx context.Context, input struct{}) (map[string]any, error) {
			return refresh(ctx, app)
		})

	return nil
}

func handler(app *cli.App) (*licensingApp.Handler, error) {
	if app == nil || app.Handler == nil {
		return nil, errHandlerUnavailable
	}
	return app.Handler, nil
}

func licenceStatus(ctx context.Context, app *cli.App) (*statusOutput, error) {
	h, err := handler(app)
	if err != nil {
		return nil, err
	}
	snapshot, err := h.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	features := make(map[string]bool, len(domain.AddOnFeatures))
	for _, f := range domain.AddOnFeatures {
		enabled, err := h.IsFeatureEnabled(ctx, f)
		if err != nil {
			return nil, err
		}
		features[string(f)] = enabled
	}
	return &statusOutput{Flavor: app.Flavor.String(), Snapshot: snapshot, Features: features}, nil
}

func featureEnabled(ctx context.Context, app *cli.App, input featureInput) (map[string]any, error) {
	h, err := handler(app)
	if err != nil {
		return nil, err
	}
	for _, f := range domain.AddOnFeatures {
		if string(f) != input.Feature {
			continue
		}
		enabled, err := h.IsFeatureEnabled(ctx, f)
		if err != nil {
			return nil, err
		}
		return map[string]any{"feature": input.Feature, "enabled": enabled}, nil
	}
	return nil, fmt.Errorf("unknown feature %q", input.Feature)
}

func packagePrice(ctx context.Context, app *cli.App, input packageInput) (*priceOutput, error) {
	h, err := handler(app)
	if err != nil {
		return nil, err
	}
	pkg, err := domain.ParsePackage(input.Package)
	if err != nil {
		return nil, err
	}
	return priceFor(ctx, h, pkg)
}

func priceFor(ctx context.Context, h *licensingApp.Handler, pkg domain.Package) (*priceOutput, error) {
	sku, err := h.SkuForPackage(ctx, pkg)
	if err != nil {
		return nil, err
	}
	price, ok, err := h.FormattedPrice(ctx, pkg)
	if err != nil {
		return nil, err
	}
	return &priceOutput{Package: string(pkg), SKU: sku, Price: price, Cached: ok}, nil
}

func listPackages(ctx context.Context, app *cli.App) (*packagesOutput, error) {
	h, err := handler(app)
	if err != nil {
		return nil, err
	}
	out := &packagesOutput{Packages: []priceOutput{}}
	if !app.Flavor.UsesInAppPurchase() {
		return out, nil
	}
	pkgs := []domain.Package{domain.PackageContrib, domain.PackageUpgrade, domain.PackageExtended}
	for _, pkg := range append(pkgs, h.ProPackages()...) {
		p, err := priceFor(ctx, h, pkg)
		if err != nil {
			return nil, err
		}
		out.Packages = append(out.Packages, *p)
	}
	if out.Professional, err = h.ProfessionalPriceShortInfo(ctx); err != nil {
		return nil, err
	}
	if pkg, ok, err := h.PackageForSwitch(ctx); err != nil {
		return nil, err
	} else if ok {
		out.SwitchTo = string(pkg)
	}
	return out, nil
}

func refresh(ctx context.Context, app *cli.App) (map[string]any, error) {
	h, err := handler(app)
	if err != nil {
		return nil, err
	}
	if app.Session == nil {
		return nil, fmt.Errorf("%w: no store session configured", domain.ErrSessionNotReady)
	}
	if err := app.Session.Start(ctx); err != nil {
		return nil, err
	}
	status, err := h.LicenceStatus(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"licence": status.String(), "session": app.Session.State().String()}, nil
}
