package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
	"github.com/viant/mcp-protocol/schema"
	mcpsrv "github.com/viant/mcp/server"
	"github.com/viant/scy"
	_ "github.com/viant/scy/kms/blowfish"

	"github.com/mailops/outlook-mcp/logger"
	"github.com/mailops/outlook-mcp/mail"
	"github.com/mailops/outlook-mcp/mcp"
)

// Options defines CLI flags for the Outlook mail MCP server.
type Options struct {
	HTTPAddr     string `short:"a" long:"addr" default:":7788" description:"HTTP listen address"`
	ClientID     string `long:"client-id" description:"Azure AD application (client) ID"`
	TenantID     string `long:"tenant-id" description:"Tenant ID or 'organizations'"`
	StorageDir   string `long:"storage-dir" description:"Directory for persisted auth records"`
	AzureRef     string `long:"azure-ref" description:"scy EncodedResource for the Azure cred (e.g., ~/.secret/azure.yaml|blowfish://default)"`
	CcPolicy     string `long:"cc-policy" choice:"replicate" choice:"primary-only" description:"cc/bcc handling for individual sends"`
	UseData      bool   `long:"use-data" description:"Return tool results as structured content instead of text"`
	LogLevel     string `long:"log-level" default:"info" description:"Log level (trace..panic)"`
	LogEnv       string `long:"log-env" default:"production" description:"Log format: development for console, anything else for JSON"`
	CallbackBase string `long:"callback-base" description:"Base URL for device login pages (defaults from --addr)"`
}

func main() {
	var opts Options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		os.Exit(2)
	}
	log, err := logger.New(opts.LogEnv, opts.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	if opts.ClientID == "" {
		opts.ClientID = envOr("OUTLOOK_CLIENT_ID", "")
	}
	if opts.TenantID == "" {
		opts.TenantID = envOr("OUTLOOK_TENANT_ID", "organizations")
	}
	if opts.AzureRef == "" {
		opts.AzureRef = envOr("OUTLOOK_AZURE_REF", "")
	}
	if opts.ClientID == "" && opts.AzureRef == "" {
		log.Fatal().Msg("missing --client-id/OUTLOOK_CLIENT_ID (or provide --azure-ref / OUTLOOK_AZURE_REF)")
	}
	if opts.StorageDir == "" {
		opts.StorageDir = defaultStorageDir()
	}

	baseURL := opts.CallbackBase
	if baseURL == "" {
		hostport := opts.HTTPAddr
		if hostport != "" && hostport[0] == ':' {
			hostport = "localhost" + hostport
		}
		baseURL = "http://" + hostport
	}

	svc := mcp.NewService(&mcp.Config{
		ClientID:           opts.ClientID,
		TenantID:           opts.TenantID,
		StorageDir:         opts.StorageDir,
		CallbackBaseURL:    baseURL,
		IndividualCcPolicy: mail.CcPolicy(opts.CcPolicy),
		UseData:            opts.UseData,
		AzureRef:           scy.EncodedResource(opts.AzureRef),
	}, log)
	api := mcp.NewAPI(svc)

	options := []mcpsrv.Option{
		mcpsrv.WithImplementation(schema.Implementation{Name: "outlook-mail-mcp", Version: "0.1.0"}),
		mcpsrv.WithNewHandler(mcp.NewHandler(svc)),
		mcpsrv.WithEndpointAddress(opts.HTTPAddr),
		mcpsrv.WithRootRedirect(true),
		mcpsrv.WithStreamableURI("/mcp"),
		mcpsrv.WithCustomHTTPHandler("/outlook/auth/device/", svc.DeviceHandler()),
		mcpsrv.WithCustomHTTPHandler("/outlook/auth/pending", svc.PendingListHandler()),
		mcpsrv.WithCustomHTTPHandler("/outlook/auth/pending/clear", svc.PendingClearHandler()),
	}
	for pattern, handler := range api.Routes() {
		options = append(options, mcpsrv.WithCustomHTTPHandler(pattern, handler))
	}

	server, err := mcpsrv.New(options...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build MCP server")
	}

	server.UseStreamableHTTP(true)
	log.Info().Str("addr", opts.HTTPAddr).Msg("serving MCP and mail API")
	if err := server.HTTP(context.Background(), opts.HTTPAddr).ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func defaultStorageDir() string {
	dir, _ := os.UserConfigDir()
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "outlook-mcp")
}
