package inference

// classificationPrompt is the fixed rubric applied to every stored input.
// It pins the remote model to the seven-dimension framework and the exact
// JSON response shape the parser expects. The {user_input} placeholder is
// substituted server-side from the stored input object.
const classificationPrompt = `Analyze this text and classify the user's emotional/energetic state using the 7-state framework. Return ONLY a JSON object with confidence scores (0-100) for each state and a suggested intervention.

7-State Framework:
- Physical (Red, C): Body, survival, grounded, material concerns
- Etheric (Orange, D): Energy, vitality, life force
- Astral (Yellow, E): Emotions, dreams, desires, feelings
- Mental (Green, F): Logic, thinking, problem-solving, analysis
- Causal (Blue, G): Life patterns, meaning, karma, deeper understanding
- Buddhic (Indigo, A): Intuition, connection, spiritual knowing
- Atmic (Violet, B): Transcendence, unity, peace, highest consciousness

Text to analyze: {user_input}

Return format:
{
  "Physical": 0-100,
  "Etheric": 0-100,
  "Astral": 0-100,
  "Mental": 0-100,
  "Causal": 0-100,
  "Buddhic": 0-100,
  "Atmic": 0-100,
  "suggestion": "One specific action the user could take based on their state"
}`
