package voice

import "regexp"

var keywords = map[string][]string{
	"en": {
		"headache", "fever", "cough", "cold", "sore throat", "runny nose", "body ache",
		"fatigue", "tired", "weakness", "dizziness", "nausea", "vomiting", "diarrhea",
		"constipation", "stomach ache", "chest pain", "shortness of breath",
		"difficulty breathing", "back pain", "joint pain", "muscle pain", "rash",
		"itching", "swelling", "bruise", "burn", "insomnia", "anxiety", "depression",
		"stress", "migraine", "toothache", "ear ache", "eye pain", "blurred vision",
		"hearing loss", "tinnitus",
	},
	"ne": {
		"टाउको दुख्छ", "ज्वरो", "खोकी", "रुघाखोकी", "घाँटी दुख्छ", "शरीर दुख्छ", "थकान",
		"कमजोरी", "चक्कर", "वाकवाकी", "बान्ता", "पखाला", "कब्जियत", "पेट दुख्छ",
		"छाती दुख्छ", "सास फेर्न गाह्रो", "ढाड दुख्छ", "जोर्नी दुख्छ", "मांसपेशी दुख्छ",
		"छाला चिलाउने", "सुन्निने", "दाँत दुख्छ", "कान दुख्छ", "आँखा दुख्छ",
	},
	"hi": {
		"सिर दर्द", "बुखार", "खांसी", "सर्दी", "गले में दर्द", "शरीर दर्द", "थकान", "कमजोरी",
		"चक्कर", "जी मिचलाना", "उल्टी", "दस्त", "कब्ज", "पेट दर्द", "छाती में दर्द",
		"सांस लेने में तकलीफ", "पीठ दर्द", "जोड़ों में दर्द", "मांसपेशियों में दर्द",
		"खुजली", "सूजन", "दांत दर्द", "कान दर्द", "आंख दर्द",
	},
}

// phrasePatterns capture the symptom phrase in group 1. They run for every
// language since transcripts often mix English with Nepali or Hindi.
var phrasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi have (.+?)(?:[.,;!?]|$)`),
	regexp.MustCompile(`(?i)\bi feel (.+?)(?:[.,;!?]|$)`),
	regexp.MustCompile(`(?i)\bexperiencing (.+?)(?:[.,;!?]|$)`),
	regexp.MustCompile(`(?i)\bsuffering from (.+?)(?:[.,;!?]|$)`),
	regexp.MustCompile(`(?i)\bpain in (?:my )?(.+?)(?:[.,;!?]|$)`),
	regexp.MustCompile(`(?i)\bmy (.+?) hurts?\b`),
	regexp.MustCompile(`मलाई (.+?) दुख्छ`),
	regexp.MustCompile(`मेरो (.+?) दुख्छ`),
	regexp.MustCompile(`मुझे (.+?) दर्द है`),
	regexp.MustCompile(`मेरे (.+?) में दर्द है`),
}

var conjunctions = regexp.MustCompile(`(?i)\s+(?:and|also|plus|र|अनि|और)\s+`)
