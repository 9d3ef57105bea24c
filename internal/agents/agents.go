// Package agents holds the mentor's persona catalog and the orchestrator
// system instruction handed to the model transport.
package agents

import "strings"

// Agent is one persona of the multi-agent career mentor.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// Catalog lists every persona the orchestrator can activate, in menu order.
var Catalog = []Agent{
	{ID: "profile", Name: "Profile Analyzer", Icon: "🟦", Description: "Analyze strengths, weaknesses, & goals"},
	{ID: "personality", Name: "Personality Insight", Icon: "🟦", Description: "Discover work style & personality tags"},
	{ID: "market", Name: "Market Research", Icon: "🟦", Description: "Trending skills, salaries, & demand"},
	{ID: "micro_career", Name: "Micro-Career Recommendation", Icon: "🟦", Description: "Find niche career paths fitting you"},
	{ID: "skill_gap", Name: "Skill Gap Analyzer", Icon: "🟦", Description: "Identify missing skills & priorities"},
	{ID: "roadmap", Name: "Roadmap Generator", Icon: "🟦", Description: "Create 4-week learning plans"},
	{ID: "resume", Name: "Resume Scoring", Icon: "🟦", Description: "Score & improve your resume"},
	{ID: "aptitude", Name: "Aptitude Test", Icon: "🟦", Description: "Logical & reasoning tests"},
	{ID: "placement", Name: "Placement Prediction", Icon: "🟦", Description: "Estimate job probability"},
	{ID: "difficulty", Name: "Career Difficulty Estimator", Icon: "🟣", Description: "Assess difficulty & time to learn"},
	{ID: "project", Name: "Project Suggestion", Icon: "🟣", Description: "Get specific project ideas"},
	{ID: "interview", Name: "Interview Question Generator", Icon: "🟣", Description: "Mock interview questions"},
	{ID: "progress", Name: "Skill Progress Tracker", Icon: "🟣", Description: "Log learning & view progress"},
	{ID: "motivation", Name: "Motivation Coach", Icon: "🟣", Description: "Stress relief & study tips"},
	{ID: "certification", Name: "Free Certification Finder", Icon: "🟣", Description: "Find free courses & certs"},
	{ID: "learning_style", Name: "Learning Style Analyzer", Icon: "🟣", Description: "Visual vs Practical vs Theory"},
	{ID: "course_selector", Name: "Course Selector", Icon: "🟣", Description: "Pick the best courses"},
	{ID: "salary", Name: "Estimated Salary Predictor", Icon: "🟣", Description: "Entry vs Senior salary data"},
	{ID: "comparison", Name: "Career Comparison", Icon: "🟣", Description: "Compare two career paths"},
	{ID: "time", Name: "Time Management", Icon: "🟣", Description: "Create balanced study schedules"},
	{ID: "technical", Name: "Technical Tutor", Icon: "📚", Description: "Explain concepts, code, and algorithms"},
}

// SuggestedPrompts seed an empty conversation.
var SuggestedPrompts = []string{
	"Create a roadmap for a React Developer",
	"Find free certifications for Python",
	"Analyze my resume for a Data Scientist role",
	"Compare a Frontend Dev vs Backend Dev career",
}

// Filter returns the catalog entries matching a slash-command query by
// name or id, case-insensitively. An empty query matches everything.
func Filter(query string) []Agent {
	lower := strings.ToLower(strings.TrimSpace(query))
	var out []Agent
	for _, a := range Catalog {
		if strings.Contains(strings.ToLower(a.Name), lower) ||
			strings.Contains(strings.ToLower(a.ID), lower) {
			out = append(out, a)
		}
	}
	return out
}
