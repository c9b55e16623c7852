package project

import (
	"path/filepath"

	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
)

// Pipe resolves the project descriptor: project file, scheme, platform,
// bundle identifier, version metadata, export method and entitlements.
type Pipe struct{}

func (Pipe) String() string { return "resolving project" }

func (Pipe) Run(ctx *context.Context) error {
	cfg := ctx.Config
	p := &ctx.Project

	located, err := xcode.Locate(ctx.Workspace, cfg.Project.Path)
	if err != nil {
		return err
	}
	p.Located = *located
	ctx.Logger.Infof("Project: %s", located.Path)

	p.Scheme = cfg.Project.Scheme
	if p.Scheme == "" {
		schemes, err := xcode.ListSchemes(ctx.StdCtx, ctx.Runner, *located)
		if err != nil {
			return err
		}
		if p.Scheme, err = xcode.SelectScheme(schemes, located.Name(), ""); err != nil {
			return err
		}
	}
	p.Configuration = cfg.Project.Configuration
	ctx.Logger.Infof("Scheme: %s (%s)", p.Scheme, p.Configuration)

	settings, err := xcode.ShowBuildSettings(ctx.StdCtx, ctx.Runner, *located, p.Scheme, p.Configuration)
	if err != nil {
		return err
	}
	p.Settings = settings

	if p.Platform, err = xcode.ResolvePlatform(settings, cfg.Project.Platform); err != nil {
		return err
	}
	p.Destination = cfg.Project.Destination
	if p.Destination == "" {
		p.Destination = p.Platform.Destination()
	}
	if p.BundleID, err = xcode.ResolveBundleIdentifier(settings.Raw, cfg.Project.BundleID); err != nil {
		return err
	}
	ctx.Logger.Infof("Platform: %s, bundle id: %s", p.Platform, p.BundleID)

	if err := xcode.EnsurePlatformSDK(ctx.StdCtx, ctx.Runner, ctx.Logger, p.Platform, cfg.Project.PlatformSDKVersion); err != nil {
		return err
	}

	if p.Version, err = xcode.ReadVersionMetadata(located.Dir(), settings); err != nil {
		return err
	}
	ctx.Logger.Infof("Version: %s (%s)", p.Version.ShortVersion, p.Version.BuildNumber)

	if err := resolveExportMethod(ctx); err != nil {
		return err
	}
	if err := resolveEntitlements(ctx); err != nil {
		return err
	}

	p.ArchivePath = filepath.Join(located.Dir(), located.Name()+".xcarchive")
	p.ExportPath = filepath.Join(located.Dir(), located.Name())

	return resolveAppID(ctx)
}

func resolveExportMethod(ctx *context.Context) error {
	p := &ctx.Project
	if path := ctx.Config.Export.OptionsPlist; path != "" {
		method, err := xcode.ReadExportMethod(path)
		if err != nil {
			return err
		}
		p.ExportMethod = method
		p.ExportOptionsPath = path
		ctx.Logger.Infof("Export method: %s (from %s)", method, path)
		return nil
	}

	method, err := xcode.ExportMethod(ctx.Config.Export.Option, p.Platform, ctx.XcodeVersion)
	if err != nil {
		return err
	}
	p.ExportMethod = method
	ctx.Logger.Infof("Export method: %s", method)
	return nil
}

// resolveEntitlements uses the configured entitlements or, for macOS,
// writes defaults into the project bundle unless a file is already there.
func resolveEntitlements(ctx *context.Context) error {
	p := &ctx.Project
	if path := ctx.Config.Export.EntitlementsPlist; path != "" {
		p.EntitlementsPath = path
		return nil
	}
	if p.Platform != xcode.PlatformMacOS {
		return nil
	}

	path := filepath.Join(p.Path, "Entitlements.plist")
	created, err := xcode.EnsureEntitlements(path, p.ExportMethod)
	if err != nil {
		return err
	}
	if created {
		ctx.Logger.Infof("Wrote default entitlements to %s", path)
	} else {
		ctx.Logger.Debugf("Using existing entitlements at %s", path)
	}
	p.EntitlementsPath = path
	return nil
}

// resolveAppID looks up the App Store Connect app. Only an authorization
// failure is fatal here; a missing app matters only to the upload.
func resolveAppID(ctx *context.Context) error {
	if ctx.ASC == nil {
		return nil
	}
	id, err := ctx.ASC.GetAppID(ctx.StdCtx, ctx.Project.BundleID)
	if err != nil {
		if asc.IsUnauthorized(err) {
			return err
		}
		ctx.Logger.WithError(err).Warnf("No App Store Connect app found for %s", ctx.Project.BundleID)
		return nil
	}
	ctx.Project.AppID = id
	ctx.Logger.Debugf("App Store Connect app id: %s", id)
	return nil
}
