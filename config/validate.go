package config

import "errors"

// ValidateGitLab checks the settings required by the repository ingestor.
func (c *Config) ValidateGitLab() error {
	g := c.GitLab
	if g.LocalRepoBasePath == "" {
		return errors.New("gitlab config: local_repo_base_path is required")
	}
	if g.OutputBasePath == "" {
		return errors.New("gitlab config: output_base_path is required")
	}
	if len(g.RepoURLs) == 0 {
		return errors.New("gitlab config: at least one repository URL is required")
	}
	if g.BatchSize <= 0 {
		return errors.New("gitlab config: batch_size must be greater than 0")
	}
	if g.Parallelism <= 0 {
		return errors.New("gitlab config: parallelism must be greater than 0")
	}
	return nil
}

// ValidateSlack checks the settings required by the Slack ingestor.
func (c *Config) ValidateSlack() error {
	s := c.Slack
	if s.ClientID == "" || s.ClientSecret == "" {
		return errors.New("slack config: client_id and client_secret are required")
	}
	if s.RefreshToken == "" {
		return errors.New("slack config: refresh_token is required")
	}
	if s.OutputDir == "" {
		return errors.New("slack config: output_dir is required")
	}
	if s.MaxMessagesPerFile <= 0 {
		return errors.New("slack config: max_messages_per_file must be greater than 0")
	}
	if s.RequestsPerSecond <= 0 {
		return errors.New("slack config: requests_per_second must be greater than 0")
	}
	return nil
}

// ValidateSharePoint checks the settings required by the office ingestor.
func (c *Config) ValidateSharePoint() error {
	s := c.SharePoint
	if s.ClientID == "" || s.ClientSecret == "" || s.TenantID == "" {
		return errors.New("sharepoint config: client_id, client_secret and tenant_id are required")
	}
	if s.SiteID == "" {
		return errors.New("sharepoint config: site_id is required")
	}
	if s.UserEmail == "" {
		return errors.New("sharepoint config: user_email is required")
	}
	if s.DownloadDir == "" {
		return errors.New("sharepoint config: download_dir is required")
	}
	if s.BatchSize <= 0 {
		return errors.New("sharepoint config: batch_size must be greater than 0")
	}
	return nil
}

// ValidateOpenAI checks the settings required by the assistant publisher.
func (c *Config) ValidateOpenAI() error {
	o := c.OpenAI
	if o.APIKey == "" {
		return errors.New("openai config: api_key is required")
	}
	if o.BasePath == "" {
		return errors.New("openai config: base_path is required")
	}
	if o.AssistantName == "" {
		return errors.New("openai config: assistant_name is required")
	}
	if o.MaxRetries <= 0 {
		return errors.New("openai config: max_retries must be greater than 0")
	}
	if o.Concurrency <= 0 {
		return errors.New("openai config: concurrency must be greater than 0")
	}
	return nil
}
