package i18n

// ArMessages Arabic overlay; keys missing here fall back to English
var ArMessages = map[string]string{
	"greeting": "مرحبًا يا %s! أنا رفيقك الشخصي، كيف يمكنني مساعدتك اليوم؟",

	"app.title":         "%s - رفيقك الشخصي",
	"app.subtitle":      "رفيقك الداعم",
	"input.placeholder": "تحدث إلى %s بالعربية أو الإنجليزية...",
	"status.thinking":   "%s يفكر...",
	"status.ready":      "جاهز",
	"sidebar.user":      "المستخدم",
	"sidebar.model":     "النموذج",
	"sidebar.context":   "السياق",
	"sidebar.turns":     "%d من %d رسائل",
	"image.working":     "جارٍ تحليل الصورة...",

	"cmd.help":  "عرض الأوامر المتاحة",
	"cmd.clear": "مسح ذاكرة المحادثة",
	"cmd.quit":  "الخروج",

	"session.cleared": "تم مسح ذاكرة المحادثة",
	"model.current":   "النموذج الحالي: %s",
	"model.switched":  "تم التبديل إلى النموذج: %s",

	"startup.store_unavailable": "تخزين السجل غير متاح (%v)؛ لن تُحفظ هذه المحادثة.",
}
