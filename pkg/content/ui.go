package content

import "fmt"

// Texts shown by every frontend.
const (
	PageTitle      = "CrewAI - Content Generation"
	Title          = "Content Generation with CrewAI"
	Welcome        = "Welcome to the CrewAI demo! This app demonstrates how CrewAI agents can collaborate to generate content efficiently."
	ProgressText   = "Generating content..."
	ResultHeader   = "Content Generation Result"
	DownloadLabel  = "Download Content"
	GenerateLabel  = "Generate Content"
	TopicHint      = "Enter the topic for content generation"
	Footer         = "Built with ❤️ by [CrewAI](https://crewai.com)"
	FooterText     = "Built with ❤️ by"
	FooterLinkText = "CrewAI"
	FooterLinkURL  = "https://crewai.com"
)

// MissingKeyWarning is the startup warning for an unset API key variable.
func MissingKeyWarning(envName string) string {
	return fmt.Sprintf("⚠️ %s not found. Please set it in the environment, a .env file or the config file.", envName)
}

// ErrorMessage is how a failed generation is reported to the user.
func ErrorMessage(err error) string {
	return fmt.Sprintf("❌ An error occurred: %v", err)
}
