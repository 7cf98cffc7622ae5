package catalog

// definitions returns the 20 community challenges, organized in four author
// groups of five. Poll group N covers IDs N*5+1 through N*5+5.
func definitions() []Challenge {
	return []Challenge{
		// JonesMCL (1-5)
		{
			ID:               1,
			Name:             "Daily Mobility Stretching",
			Description:      "Improve flexibility, reduce muscle tension, and enhance overall mobility through consistent daily stretching. Regular stretching helps prevent injuries and improves range of motion.",
			DailyRequirement: "15 minutes of stretching per day",
			MinimalDose:      "10 minutes of stretching",
			DaysRequired:     6,
			Category:         "Health",
			Source:           "JonesMCL",
		},
		{
			ID:               2,
			Name:             "10,000 Steps Daily",
			Description:      "Achieve 10,000 steps per day to improve cardiovascular health, boost energy levels, and maintain an active lifestyle. Walking is one of the most accessible forms of exercise.",
			DailyRequirement: "10,000 steps per day",
			MinimalDose:      "7,500 steps per day",
			DaysRequired:     6,
			Category:         "Health",
			Source:           "JonesMCL",
		},
		{
			ID:               3,
			Name:             "Eat the Frog First",
			Description:      "Complete one unpleasant or challenging task first thing each day before moving to easier tasks. This builds discipline, reduces procrastination, and creates momentum for the rest of the day.",
			DailyRequirement: "Complete 1 unpleasant task first thing in the morning",
			MinimalDose:      "Complete 1 unpleasant task before noon",
			DaysRequired:     5,
			Category:         "Productivity",
			Source:           "JonesMCL",
		},
		{
			ID:               4,
			Name:             "Screen-Free Before Bed",
			Description:      "Eliminate all screens 60 minutes before sleep to improve sleep quality, reduce blue light exposure, and allow the mind to wind down naturally. Exception: submitting challenge proof is allowed.",
			DailyRequirement: "No screens 60 minutes before sleep (exception: proof submission)",
			MinimalDose:      "No screens 30 minutes before sleep",
			DaysRequired:     6,
			Category:         "Biohacking",
			Source:           "JonesMCL",
		},
		{
			ID:               5,
			Name:             "Daily Push-Up Challenge",
			Description:      "Complete 50 push-ups per day to build upper body strength, improve core stability, and develop consistent exercise habits. Push-ups can be distributed throughout the day.",
			DailyRequirement: "50 push-ups per day (can be distributed throughout the day)",
			MinimalDose:      "30 push-ups per day",
			DaysRequired:     6,
			Category:         "Health",
			Source:           "JonesMCL",
		},
		// Marc (6-10)
		{
			ID:               6,
			Name:             "The Scientist",
			Description:      "Read and analyze one scientific paper daily in AI/Tech/Neuroscience or related fields. Document key insights and takeaways to build knowledge and stay current with research.",
			DailyRequirement: "Read 1 scientific paper (AI/Tech/Neuroscience) and note key insights (minimum: Abstract + Conclusion)",
			MinimalDose:      "Read Abstract + Conclusion of 1 scientific paper",
			DaysRequired:     5,
			Category:         "CEO",
			Source:           "Marc",
		},
		{
			ID:               7,
			Name:             "Sleep Wind-Down Ritual",
			Description:      "Create a tech-free evening routine before bed to signal your body for rest. Activities like reading, stretching, or journaling help transition from active day to restful sleep.",
			DailyRequirement: "20-30 minutes of tech-free evening routine (reading, stretching, journaling) before sleep",
			MinimalDose:      "10 minutes of tech-free evening routine",
			DaysRequired:     6,
			Category:         "Biohacking",
			Source:           "Marc",
		},
		{
			ID:               8,
			Name:             "Non-Time Stillness",
			Description:      "Practice intentional stillness and presence by doing nothing for a set period. This could be window gazing, mindful walking, or simply allowing thoughts to flow without engagement.",
			DailyRequirement: "15 minutes of conscious stillness (window gazing, mindful walking, letting thoughts flow)",
			MinimalDose:      "5 minutes of conscious stillness",
			DaysRequired:     6,
			Category:         "Life Improvement",
			Source:           "Marc",
		},
		{
			ID:               9,
			Name:             "The Minimalist Reset",
			Description:      "Declutter your physical space daily by removing at least one item. This practice creates mental clarity, reduces decision fatigue, and maintains an organized environment.",
			DailyRequirement: "Remove at least 1 item per day (discard, donate, or organize) and tidy space",
			MinimalDose:      "Remove 1 item per day",
			DaysRequired:     6,
			Category:         "Life Improvement",
			Source:           "Marc",
		},
		{
			ID:               10,
			Name:             "Vision Manifestation",
			Description:      "Visualize your future vision and annual goals daily with closed eyes. This practice strengthens neural pathways, increases motivation, and aligns actions with desired outcomes.",
			DailyRequirement: "10 minutes of future vision and annual goals visualization with closed eyes",
			MinimalDose:      "5 minutes of visualization",
			DaysRequired:     6,
			Category:         "CEO",
			Source:           "Marc",
		},
		// JanWilken (11-15)
		{
			ID:               11,
			Name:             "Daily Compliments",
			Description:      "Give genuine compliments to people in your environment about their clothing, behavior, or positive qualities. This practice strengthens relationships, spreads positivity, and improves social connections.",
			DailyRequirement: "Give at least 1 genuine compliment to someone in your environment (clothing, behavior, etc.)",
			MinimalDose:      "Give 1 compliment per day",
			DaysRequired:     6,
			Category:         "Life Improvement",
			Source:           "JanWilken",
		},
		{
			ID:               12,
			Name:             "Morning Sunlight Exposure",
			Description:      "Get direct sunlight within an hour of waking to anchor your circadian rhythm. Morning light exposure improves sleep quality, mood, and daytime alertness.",
			DailyRequirement: "10 minutes of outdoor daylight within 1 hour of waking",
			MinimalDose:      "5 minutes of outdoor daylight before noon",
			DaysRequired:     5,
			Category:         "Biohacking",
			Source:           "JanWilken",
		},
		{
			ID:               13,
			Name:             "Approach Strangers",
			Description:      "Practice social courage by approaching strangers in everyday situations (street, public transport) and asking for recommendations or engaging in brief, positive interactions.",
			DailyRequirement: "Approach 1 stranger in daily life (street, public transport) and ask for a recommendation or engage positively",
			MinimalDose:      "Approach 1 stranger per day",
			DaysRequired:     5,
			Category:         "Life Improvement",
			Source:           "JanWilken",
		},
		{
			ID:               14,
			Name:             "Mindfulness Labelling",
			Description:      "Practice present-moment awareness by mentally labeling your actions as you perform them. For example, while walking, think \"walking, walking, walking\" to stay fully present.",
			DailyRequirement: "Practice mindfulness labeling during daily activities (e.g., \"walking, walking\" while walking)",
			MinimalDose:      "Label 1 activity per day mindfully",
			DaysRequired:     6,
			Category:         "Life Improvement",
			Source:           "JanWilken",
		},
		{
			ID:               15,
			Name:             "Zero Added Sugar",
			Description:      "Eliminate all added sugars from your diet to improve metabolic health, reduce inflammation, stabilize energy levels, and break sugar dependency patterns.",
			DailyRequirement: "Zero added sugar consumption",
			MinimalDose:      "Zero added sugar consumption",
			DaysRequired:     7,
			Category:         "Health",
			Source:           "JanWilken",
		},
		// Community (16-20)
		{
			ID:               16,
			Name:             "Cold Shower Finish",
			Description:      "End every shower with cold water to build stress resilience, improve circulation, and train deliberate discomfort tolerance.",
			DailyRequirement: "60 seconds of cold water at the end of each shower",
			MinimalDose:      "30 seconds of cold water",
			DaysRequired:     6,
			Category:         "Biohacking",
			Source:           "Community",
		},
		{
			ID:               17,
			Name:             "Evening Journaling",
			Description:      "Write a short daily reflection on what went well, what did not, and one thing to improve tomorrow. Journaling consolidates learning and clears the mind before sleep.",
			DailyRequirement: "Write at least 5 sentences of evening reflection",
			MinimalDose:      "Write 1 sentence about the day",
			DaysRequired:     6,
			Category:         "Life Improvement",
			Source:           "Community",
		},
		{
			ID:               18,
			Name:             "Read 20 Pages",
			Description:      "Read at least 20 pages of a non-fiction book daily. Consistent reading compounds into dozens of finished books per year.",
			DailyRequirement: "Read 20 pages of a book",
			MinimalDose:      "Read 10 pages of a book",
			DaysRequired:     5,
			Category:         "CEO",
			Source:           "Community",
		},
		{
			ID:               19,
			Name:             "No Caffeine After Noon",
			Description:      "Cut all caffeine after 12:00 to protect deep sleep. Caffeine's half-life means an afternoon coffee still disrupts sleep architecture at night.",
			DailyRequirement: "Zero caffeine after 12:00",
			MinimalDose:      "Zero caffeine after 15:00",
			DaysRequired:     6,
			Category:         "Biohacking",
			Source:           "Community",
		},
		{
			ID:               20,
			Name:             "Inbox Zero Sweep",
			Description:      "Process your inbox to zero once per day: answer, archive, or schedule every message. A clear inbox reduces background anxiety and decision fatigue.",
			DailyRequirement: "Process inbox to zero once per day",
			MinimalDose:      "Process 10 messages",
			DaysRequired:     5,
			Category:         "Productivity",
			Source:           "Community",
		},
	}
}
