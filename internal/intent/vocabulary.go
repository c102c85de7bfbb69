package intent

// genreVocabulary is the fixed genre keyword set used by the heuristic parser
// and the event extractor's short-prompt rule. Keys are folded tokens.
var genreVocabulary = map[string]struct{}{
	"reggaeton": {}, "reggaetón": {}, "dembow": {}, "trap": {}, "latin": {},
	"rock": {}, "pop": {}, "indie": {}, "metal": {}, "punk": {},
	"techno": {}, "house": {}, "electronica": {}, "electrónica": {}, "edm": {},
	"salsa": {}, "bachata": {}, "cumbia": {}, "merengue": {}, "flamenco": {},
	"jazz": {}, "blues": {}, "soul": {}, "funk": {}, "disco": {},
	"rap": {}, "hiphop": {}, "hip-hop": {}, "drill": {},
	"country": {}, "folk": {}, "reggae": {}, "ska": {},
	"classical": {}, "clasica": {}, "clásica": {}, "ambient": {}, "lofi": {},
	"corridos": {}, "banda": {}, "ranchera": {}, "bolero": {},
}

// activityKeywords maps prompt tokens to a normalized activity tag.
var activityKeywords = map[string]string{
	"gym": "workout", "gimnasio": "workout", "workout": "workout",
	"entrenar": "workout", "entreno": "workout", "calentar": "workout",
	"correr": "running", "running": "running", "run": "running",
	"estudiar": "study", "study": "study", "trabajar": "focus", "focus": "focus",
	"fiesta": "party", "party": "party", "perreo": "party", "previa": "party",
	"relajar": "chill", "relajarme": "chill", "chill": "chill", "dormir": "sleep",
	"viaje": "roadtrip", "roadtrip": "roadtrip", "conducir": "roadtrip",
}

// vibeKeywords maps descriptive tokens to free-form vibe tags.
var vibeKeywords = map[string]string{
	"energetica": "energetic", "energética": "energetic", "energetic": "energetic",
	"intensa": "intense", "intense": "intense", "dura": "hard",
	"triste": "sad", "sad": "sad", "melancolica": "melancholic", "melancólica": "melancholic",
	"alegre": "happy", "happy": "happy", "feliz": "happy",
	"tranquila": "calm", "calm": "calm", "relajante": "calm", "suave": "soft",
	"romantica": "romantic", "romántica": "romantic", "romantic": "romantic",
	"oscura": "dark", "dark": "dark", "epica": "epic", "épica": "epic",
	"nostalgica": "nostalgic", "nostálgica": "nostalgic", "nostalgic": "nostalgic",
	"acustica": "acoustic", "acústica": "acoustic", "acoustic": "acoustic",
}

// languageMarkers maps prompt phrases to language codes.
var languageMarkers = map[string]string{
	"español": "es", "espanol": "es", "spanish": "es", "castellano": "es",
	"ingles": "en", "inglés": "en", "english": "en",
	"portugues": "pt", "portugués": "pt", "portuguese": "pt",
	"frances": "fr", "francés": "fr", "french": "fr",
	"italiano": "it", "italian": "it",
	"coreano": "ko", "korean": "ko", "japones": "ja", "japonés": "ja", "japanese": "ja",
}

// strictLanguageMarkers flag the allow-list as exclusive ("solo en español").
var strictLanguageMarkers = []string{
	"solo en", "sólo en", "solamente en", "only in", "únicamente en", "unicamente en",
}

// energyHints set target scalars from descriptive tokens.
var energyHints = map[string]float64{
	"energetica": 0.85, "energética": 0.85, "energetic": 0.85, "intensa": 0.9,
	"intense": 0.9, "dura": 0.9, "tranquila": 0.25, "calm": 0.25,
	"relajante": 0.2, "suave": 0.3, "chill": 0.3,
}

// valenceHints set target mood scalars from descriptive tokens.
var valenceHints = map[string]float64{
	"triste": 0.2, "sad": 0.2, "melancolica": 0.25, "melancólica": 0.25,
	"alegre": 0.85, "happy": 0.85, "feliz": 0.85, "oscura": 0.2, "dark": 0.2,
}

// activityEnergy provides a default energy target per activity tag.
var activityEnergy = map[string]float64{
	"workout": 0.85, "running": 0.8, "party": 0.9,
	"study": 0.3, "focus": 0.35, "chill": 0.3, "sleep": 0.1, "roadtrip": 0.6,
}
