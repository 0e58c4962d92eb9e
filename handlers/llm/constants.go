package llm

// DEFAULT_SYSTEM_PROMPT keeps replies short because every reply is spoken.
const DEFAULT_SYSTEM_PROMPT = `You are a helpful AI assistant. Please provide clear, concise, and friendly responses. Keep your responses conversational and not too lengthy since they will be converted to speech.`

// DEFAULT_HISTORY_TURNS is how many prior exchanges are replayed to the model.
const DEFAULT_HISTORY_TURNS = 3
