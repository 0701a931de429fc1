package mcp

import (
	"github.com/viant/scy"

	"github.com/mailops/outlook-mcp/mail"
)

// Config controls the Outlook mail MCP server.
type Config struct {
	// Azure AD application (client) ID for Microsoft Graph.
	ClientID string `json:"clientID"`
	// TenantID or "organizations"/"common".
	TenantID string `json:"tenantID"`

	// StorageDir is where auth records are persisted per account alias.
	StorageDir string `json:"storageDir,omitempty"`

	// CallbackBaseURL is used to build absolute URLs for the device login page.
	// Example: http://localhost:7788
	CallbackBaseURL string `json:"callbackBaseURL,omitempty"`

	// IndividualCcPolicy decides whether individual-mode sends replicate the
	// request's cc/bcc on every payload ("replicate", the default) or attach
	// them to none ("primary-only").
	IndividualCcPolicy mail.CcPolicy `json:"individualCcPolicy,omitempty"`

	// If true, return tool results in structured content instead of text.
	UseData bool `json:"useData,omitempty"`

	// AzureRef optionally points to an Azure OAuth2 client config stored as a
	// scy resource, using EncodedResource syntax "<URL>|<kmsKey>":
	//  - file-based: "~/.secret/azure.yaml|blowfish://default"
	//  - GCP secret: "gcp://secretmanager/projects/myproj/secrets/azure-cred|blowfish://default"
	// The referenced content should unmarshal into github.com/viant/scy/cred.Azure.
	AzureRef scy.EncodedResource `json:"azureRef,omitempty"`
}

func (c *Config) ccPolicy() mail.CcPolicy {
	if c.IndividualCcPolicy == "" {
		return mail.ReplicateCc
	}
	return c.IndividualCcPolicy
}
