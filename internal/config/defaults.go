package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration.
const (
	DefaultLogLevel = "info"

	DefaultDBPath = "storage.db"

	DefaultCatalogFile  = "./data/catalog.json"
	DefaultBadWordsFile = "./data/badwords.json"

	DefaultConversationLimit = 1000
	DefaultDailyBucketLimit  = 30
	DefaultMatchThreshold    = 0.6
	DefaultTypingPerWord     = 300 * time.Millisecond
	DefaultTypingMax         = 3 * time.Second
	DefaultEscalationAfter   = 2

	DefaultSessionKeyPrefix = "replybot:session:"

	DefaultDashboardAddr = ":3001"

	SessionFlushTask        = "session_flush"
	SQLMaintenanceTask      = "sql_maintenance"
	DefaultSessionFlushCron = "0 */15 * * * *"
	DefaultMaintenanceCron  = "0 30 4 * * *"
)

// DefaultPraiseKeywords trigger the thanks reply. Surrounding spaces are
// removed by normalization before comparison.
var DefaultPraiseKeywords = []string{
	" شكرا ليك",
	"ربنا يكرمك",
	"الله يخليك",
	"ممتاز",
	"كويس",
	"شكرا ",
	"تسلم جدا ",
	"عظيم ",
	"حلو",
	"رائع",
	"جميل",
	"perfect",
	"great",
	"good",
	"amazing",
}

// DefaultThanksReplies answer praise.
var DefaultThanksReplies = []string{
	"تسلم يا فندم 🙌",
	"شكرا على كلامك الحلو 🌹",
	"مبسوط إن الكورس عجبك 🎉",
	"ده من ذوقك والله 🙏",
	"متشكر جدًا يا بطل 💪",
}

// DefaultNegativePhrases gate the remorseful reply when remorse_mode is
// negative_phrases.
var DefaultNegativePhrases = []string{
	"مدايق",
	"سيئ",
	"انا ادايقت بجد",
}

// DefaultClarifications are sent when nothing in the catalog matches.
var DefaultClarifications = []string{
	"ممكن توضّح قصدك أكتر؟ 🤔",
	"مش فاهم قصدك، تقصد السعر ولا المكان او ممكن تقول عايز اي بالظبط؟",
	"ممكن تعيد صياغة السؤال؟ 🙏",
	"وضح ليا حابب تعرف اي اكثر ",
}

// DefaultMessages holds the fixed reply texts.
var DefaultMessages = MessagesConfig{
	AbuseReply:           "ياريت نحافظ على الأسلوب 🙏 لو محتاج مساعدة قوللي.",
	SupportAlert:         "🚨 عميل استخدم لفظ غير لائق.\n\n📱 الرقم: %s\n📝 الرسالة: \"%s\"",
	ApologySuffix:        " 🙏 آسف لو في حاجة مضايقاك",
	Escalation:           "+2واضح إن حضرتك مش مرتاح، خليني أسيبلك رقم خدمة العملاء 📞 01553420068",
	Clarifications:       DefaultClarifications,
	TechnicalError:       "عذراً، حدث خطأ تقني. يرجى المحاولة مرة أخرى.",
	CatalogUnavailable:   "عذراً، أواجه مشكلة تقنية. يرجى المحاولة مرة أخرى أو التواصل مع الدعم الفني.",
	Welcome:              "👋 أهلاً بيك! ابعتلي سؤالك وهرد عليك على طول.",
	ErrorUnauthorizedMsg: "🚫 Access denied. Please contact the administrator.",
	PausedMsg:            "⏸️ Bot paused.",
	ResumedMsg:           "▶️ Bot resumed.",
	StatsResetMsg:        "🔄 Message statistics have been reset.",
	CatalogReloadedMsg:   "📚 Catalog reloaded: %d intents, %d bad words.",
	StatsMsg:             "📊 Today: %d\n📅 Last 30 days: %d",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)
	v.SetDefault("telegram.support_chat_id", "")

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("catalog.files", []string{DefaultCatalogFile})
	v.SetDefault("catalog.bad_words_file", DefaultBadWordsFile)
	v.SetDefault("catalog.praise_keywords", DefaultPraiseKeywords)
	v.SetDefault("catalog.thanks_replies", DefaultThanksReplies)

	v.SetDefault("engine.conversation_limit", DefaultConversationLimit)
	v.SetDefault("engine.daily_bucket_limit", DefaultDailyBucketLimit)
	v.SetDefault("engine.match_threshold", DefaultMatchThreshold)
	v.SetDefault("engine.typing_per_word", DefaultTypingPerWord)
	v.SetDefault("engine.typing_max", DefaultTypingMax)
	v.SetDefault("engine.escalation_after", DefaultEscalationAfter)
	v.SetDefault("engine.remorse_mode", RemorseAlways)
	v.SetDefault("engine.negative_phrases", DefaultNegativePhrases)

	v.SetDefault("session.backend", SessionBackendMemory)
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.key_prefix", DefaultSessionKeyPrefix)

	v.SetDefault("messages.abuse_reply", DefaultMessages.AbuseReply)
	v.SetDefault("messages.support_alert", DefaultMessages.SupportAlert)
	v.SetDefault("messages.apology_suffix", DefaultMessages.ApologySuffix)
	v.SetDefault("messages.escalation", DefaultMessages.Escalation)
	v.SetDefault("messages.clarifications", DefaultMessages.Clarifications)
	v.SetDefault("messages.technical_error", DefaultMessages.TechnicalError)
	v.SetDefault("messages.catalog_unavailable", DefaultMessages.CatalogUnavailable)
	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.error_unauthorized", DefaultMessages.ErrorUnauthorizedMsg)
	v.SetDefault("messages.paused", DefaultMessages.PausedMsg)
	v.SetDefault("messages.resumed", DefaultMessages.ResumedMsg)
	v.SetDefault("messages.stats_reset", DefaultMessages.StatsResetMsg)
	v.SetDefault("messages.catalog_reloaded", DefaultMessages.CatalogReloadedMsg)
	v.SetDefault("messages.stats", DefaultMessages.StatsMsg)

	v.SetDefault("scheduler.tasks."+SessionFlushTask+".schedule", DefaultSessionFlushCron)
	v.SetDefault("scheduler.tasks."+SessionFlushTask+".enabled", true)
	v.SetDefault("scheduler.tasks."+SQLMaintenanceTask+".schedule", DefaultMaintenanceCron)
	v.SetDefault("scheduler.tasks."+SQLMaintenanceTask+".enabled", true)

	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.addr", DefaultDashboardAddr)
}
