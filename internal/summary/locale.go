package summary

import "strings"

// Locale is the output language of a summary.
type Locale string

// Supported locales.
const (
	LocaleEN Locale = "en"
	LocaleUA Locale = "ua"
	LocaleRU Locale = "ru"
)

// ParseLocale returns the locale named by s, or LocaleEN.
func ParseLocale(s string) Locale {
	switch l := Locale(strings.ToLower(strings.TrimSpace(s))); l {
	case LocaleUA, LocaleRU:
		return l
	default:
		return LocaleEN
	}
}

// sectionOrder is the order sections are rendered in.
var sectionOrder = []string{
	"announcements", "reviewOfProgress", "keyAchievements",
	"challengesAndAdjustmentsNeeded", "actionItemsAndAccountability",
	"yesterdaysWork", "todaysPlans", "blockers", "otherNotes",
	"whatWasDemonstrated", "feedbackAndComments", "decisionsMade", "nextSteps",
	"businessRequirements", "functionalRequirements", "nonFunctionalRequirements", "questionsOpenPoints",
	"projectGoals", "projectScope", "rolesAndResponsibilities", "risksAndAssumptions", "nextStepsActionPlan",
}

var sectionTitles = map[Locale]map[string]string{
	LocaleEN: {
		"announcements":                  "Announcements",
		"reviewOfProgress":               "Review of Progress",
		"keyAchievements":                "Key Achievements",
		"challengesAndAdjustmentsNeeded": "Challenges and Adjustments Needed",
		"actionItemsAndAccountability":   "Action Items and Accountability",
		"yesterdaysWork":                 "Yesterday's Work",
		"todaysPlans":                    "Today's Plans",
		"blockers":                       "Blockers",
		"otherNotes":                     "Other Notes",
		"whatWasDemonstrated":            "What Was Demonstrated",
		"feedbackAndComments":            "Feedback & Comments",
		"decisionsMade":                  "Decisions Made",
		"nextSteps":                      "Next Steps",
		"businessRequirements":           "Business Requirements",
		"functionalRequirements":         "Functional Requirements",
		"nonFunctionalRequirements":      "Non-Functional Requirements",
		"questionsOpenPoints":            "Questions / Open Points",
		"projectGoals":                   "Project Goals",
		"projectScope":                   "Project Scope",
		"rolesAndResponsibilities":       "Roles & Responsibilities",
		"risksAndAssumptions":            "Risks & Assumptions",
		"nextStepsActionPlan":            "Next Steps / Action Plan",
	},
	LocaleUA: {
		"announcements":                  "Анонси",
		"reviewOfProgress":               "Огляд прогресу",
		"keyAchievements":                "Ключові досягнення",
		"challengesAndAdjustmentsNeeded": "Виклики та необхідні коригування",
		"actionItemsAndAccountability":   "План дій та відповідальність",
		"yesterdaysWork":                 "Вчорашня робота",
		"todaysPlans":                    "Плани на сьогодні",
		"blockers":                       "Блокери",
		"otherNotes":                     "Інші нотатки",
		"whatWasDemonstrated":            "Що було продемонстровано",
		"feedbackAndComments":            "Відгуки та коментарі",
		"decisionsMade":                  "Прийняті рішення",
		"nextSteps":                      "Наступні кроки",
		"businessRequirements":           "Бізнес-вимоги",
		"functionalRequirements":         "Функціональні вимоги",
		"nonFunctionalRequirements":      "Нефункціональні вимоги",
		"questionsOpenPoints":            "Питання / Відкриті пункти",
		"projectGoals":                   "Цілі проєкту",
		"projectScope":                   "Обсяг проєкту",
		"rolesAndResponsibilities":       "Ролі та відповідальність",
		"risksAndAssumptions":            "Ризики та припущення",
		"nextStepsActionPlan":            "Наступні кроки / План дій",
	},
	LocaleRU: {
		"announcements":                  "Объявления",
		"reviewOfProgress":               "Обзор прогресса",
		"keyAchievements":                "Ключевые достижения",
		"challengesAndAdjustmentsNeeded": "Проблемы и необходимые корректировки",
		"actionItemsAndAccountability":   "План действий и ответственность",
		"yesterdaysWork":                 "Вчерашняя работа",
		"todaysPlans":                    "Планы на сегодня",
		"blockers":                       "Блокеры",
		"otherNotes":                     "Прочие заметки",
		"whatWasDemonstrated":            "Что было продемонстрировано",
		"feedbackAndComments":            "Отзывы и комментарии",
		"decisionsMade":                  "Принятые решения",
		"nextSteps":                      "Следующие шаги",
		"businessRequirements":           "Бизнес-требования",
		"functionalRequirements":         "Функциональные требования",
		"nonFunctionalRequirements":      "Нефункциональные требования",
		"questionsOpenPoints":            "Вопросы / Открытые пункты",
		"projectGoals":                   "Цели проекта",
		"projectScope":                   "Объём проекта",
		"rolesAndResponsibilities":       "Роли и обязанности",
		"risksAndAssumptions":            "Риски и допущения",
		"nextStepsActionPlan":            "Следующие шаги / План действий",
	},
}

var noItems = map[Locale]string{
	LocaleEN: "No specific items noted in transcript for this section.",
	LocaleUA: "Для цього розділу в транскрипті не зазначено конкретних пунктів.",
	LocaleRU: "Для этого раздела в транскрипте не отмечено конкретных пунктов.",
}

var languages = map[Locale]string{
	LocaleEN: "English",
	LocaleUA: "Ukrainian",
	LocaleRU: "Russian",
}

func titles(l Locale) map[string]string {
	if t, ok := sectionTitles[l]; ok {
		return t
	}
	return sectionTitles[LocaleEN]
}

// SectionTitle returns the localized title of a section key.
func SectionTitle(l Locale, key string) string {
	return titles(l)[key]
}

// NoItemsMessage is the placeholder for an empty section.
func NoItemsMessage(l Locale) string {
	if m, ok := noItems[l]; ok {
		return m
	}
	return noItems[LocaleEN]
}

// LocaleInstruction is the prompt line selecting the output language.
func LocaleInstruction(l Locale) string {
	lang, ok := languages[l]
	if !ok {
		lang = languages[LocaleEN]
	}
	return "You MUST write the summary in " + lang + "."
}

// TitlesToKeys inverts the section titles of l.
func TitlesToKeys(l Locale) map[string]string {
	t := titles(l)
	out := make(map[string]string, len(t))
	for k, v := range t {
		out[v] = k
	}
	return out
}
