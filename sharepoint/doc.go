// Package sharepoint exports Office documents from a SharePoint site.
//
// Client talks to Microsoft Graph using the OAuth2 client credentials
// grant of an Azure AD application. Ingestor selects the documents a user
// has modified, downloads them and writes their extracted content to
// batch_<n>.json files next to the downloads.
package sharepoint
